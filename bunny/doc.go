// Package bunny provides a client for the Bunny.net Stream and account APIs.
//
// Every call goes through a retry coordinator that backs off exponentially
// (1s, 2s, 4s by default) and cooperates with other callers through a shared
// rate-limit marker: when any caller receives a 429 it stores the time before
// which no one should call again, and every attempt first waits for that
// time to pass. The marker lives in a transient.Store, so it can be shared
// between processes with Redis.
//
// # Architecture
//
//   - Client: owns credentials, builds and sends requests, retries them
//   - RequestBuilder: AccessKey header or Bearer token authentication
//   - Retrier: backoff, Retry-After handling and the shared marker
//   - Collections, Videos, Libraries, StorageZones: resource handlers
//
// # Usage
//
//	logger := zerolog.New(os.Stderr)
//	client, err := bunny.New(
//		bunny.Credentials{AccessKey: key, LibraryID: "12345"},
//		transient.NewMemoryStore(),
//		logger,
//		bunny.WithMaxAttempts(3),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	collections := bunny.NewCollections(client, store.NewMemoryLinks())
//	guid, err := collections.CreateCollection(ctx, "42", nil)
//
// # Error Handling
//
// Handlers return classified errors. Use errors.Is with the sentinels
// (ErrMissingLibraryID, ErrCollectionCreationLocked, ErrAPIFailure, ...) or
// KindOf to get the ErrorKind of any returned error:
//
//	if errors.Is(err, bunny.ErrAPIFailure) {
//		var exhausted *bunny.ExhaustedError
//		errors.As(err, &exhausted)
//		log.Printf("gave up after %d attempts: %v", exhausted.Attempts, exhausted.Last)
//	}
//
// Access keys are never written to logs; header dumps are redacted.
package bunny
