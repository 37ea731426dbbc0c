// Package magic identifies the type of file contents, the way the file(1)
// command does.
//
// The package provides the Magic handle, a typed wrapper around a pluggable
// identification engine. A handle is opened with a set of flags, loads one
// or more magic databases, and then identifies single files or whole batches
// of them. The package returns concrete types (Magic, Result) and consumes
// the Engine and EngineSession interfaces, so the bundled engine can be
// substituted in tests or replaced with a native library binding. Filesystem
// access goes through the go-billy abstraction, so handles work against
// in-memory filesystems too.
//
// # Basic Usage
//
// Create a handle, load a database and identify a file:
//
//	m, err := magic.New(
//		magic.WithFlags(magic.FlagMime),
//		magic.WithDatabase("/usr/share/misc/magic.mgc"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	mime, err := m.IdentifyFile("archive.tar.gz")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(mime) // "application/gzip; charset=binary"
//
// Without WithDatabase the handle is opened but not yet valid; load a
// database later with LoadDatabaseFile. An empty path loads the default
// database, resolved once at construction from the environment variable
// named by DefaultDatabaseEnv, falling back to DefaultDatabaseFile:
//
//	m, err := magic.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Close()
//
//	if err := m.LoadDatabaseFile(""); err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(m.IsValid()) // true
//
// # Flags
//
// Flags control how files are inspected and how results are rendered. They
// combine with the bitwise OR operator and can be replaced on an open
// handle:
//
//	if err := m.SetFlags(magic.FlagMimeType | magic.FlagError); err != nil {
//		log.Fatal(err)
//	}
//
// # Batch Identification
//
// IdentifyDirectory scans a directory tree and identifies every entry in
// it; IdentifyFiles identifies an explicit list of paths. Both fail fast on
// the first error. The Try variants record per-path failures in the result
// map instead and keep going:
//
//	results, err := m.TryIdentifyDirectory("/var/spool/uploads")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for path, result := range results {
//		if result.Err != nil {
//			fmt.Printf("%s: SKIPPED (%v)\n", path, result.Err)
//			continue
//		}
//		fmt.Printf("%s: %s\n", path, result.Value)
//	}
//
// # Progress Reporting
//
// Batches accept a progress.Tracker shared with the caller. The batch
// resets it to one step per path and advances it as paths are processed,
// while another goroutine polls or waits on it:
//
//	tracker := progress.NewTracker(1)
//
//	go func() {
//		for !tracker.TryWaitForCompletion(100 * time.Millisecond) {
//			fmt.Printf("\r%s", tracker.CompletionPercentage())
//		}
//	}()
//
//	results, err := m.TryIdentifyDirectory(dir, magic.WithTracker(tracker))
//
// # Errors
//
// Handle operations return sentinel errors (ErrClosed, ErrDatabaseNotLoaded,
// ErrEmptyPath) or typed errors (*PathError, *EngineError, *ParameterError,
// *FilesystemError) that wrap them. Match them with errors.Is and errors.As:
//
//	_, err := m.IdentifyFile("missing.bin")
//	if errors.Is(err, magic.ErrNotExist) {
//		// handle the missing file
//	}
//
// # Concurrency
//
// A Magic handle confines itself to one goroutine; only the
// progress.Tracker is safe to share. Run the batch on a worker goroutine
// and watch the tracker from the others.
package magic
