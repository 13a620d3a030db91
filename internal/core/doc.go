// Package core runs batch synchronization of input records against the
// remote object API.
//
// The package holds the domain logic independent of the command line: it can
// be driven by cmd/crmsync or by tests with a stub Remote.
//
// # Run sequence
//
// [Runner.Run] performs one run:
//
//  1. Open the input and sniff its dialect and header (no remote traffic yet)
//  2. Authenticate once; the session is reused for every later call
//  3. Describe the object type and check the header against it
//  4. Create the result file next to the input
//  5. Process rows strictly in order, writing one result row per input row
//  6. Print the result file location and close the ledger entry
//
// In fetch mode the run is just authenticate, getObject and a one-row CSV.
//
// # Modes
//
// A run is either [ModeSave] or [ModeDelete], never mixed. Save sends every
// field the row carries plus object=<type>. How the primary-key column is
// sent is chosen by [KeyPolicy]:
//
//   - passthrough: <type>_KEY is sent under its own name (the default)
//   - translate: a non-empty <type>_KEY is sent as the wire argument key
//
// Delete sends object=<type>&key=<row's <type>_KEY>.
//
// # Failure policy
//
// A well-formed response that reports a failed save or delete is row-local:
// it is printed, written to the result file, counted and the run goes on
// ([RemoteOperationError]). Everything else is fatal: malformed responses,
// transport failures, input structure problems and result file write errors
// stop the run. Rows written before the failure stay in the result file.
//
// # Error Handling
//
// Errors are mapped to user-facing messages with support codes using
// [MapError]:
//
//   - AUTH001-AUTH002: authentication
//   - PROTO001-PROTO004: malformed remote responses
//   - NET001-NET002: transport failures and timeouts
//   - INPUT001-INPUT005: input file structure
//   - OUTPUT001: result file
//   - REM001: row-local remote failures
//   - CFG001, RUN001: configuration and cancellation
package core
