// Package media offloads video attachments to Bunny Stream.
//
// An Offloader takes an upload that has landed on local disk, checks by
// content sniffing that it really is a video, resolves the uploader's
// collection (creating it on first use), uploads the bytes into a new video
// object and records the result in the metadata store. Playback URLs that
// are not ready at upload time are filled in later by
// HandleAttachmentMetadata, and WaitForEncoding polls many videos at once
// until encoding ends.
package media
