// Package errors provides typed errors with exit codes for fleetctl.
//
// # Error Types
//
// FleetError is the base error type that wraps an error with an exit code:
//
//	type FleetError struct {
//	    Code    int    // Exit code
//	    Message string // User-facing message
//	    Cause   error  // Wrapped error
//	}
//
// # Exit Codes
//
// Defined exit codes for different error categories:
//
//	ExitSuccess         = 0  // Success
//	ExitGeneralError    = 1  // General/unknown errors
//	ExitProjectNotFound = 2  // Project does not exist
//	ExitPortAllocation  = 3  // Port allocation failure
//	ExitProcessFailed   = 4  // Process operation failed
//	ExitConfigError     = 5  // Configuration error
//	ExitImportError     = 6  // Project import failed
//	ExitCodecError      = 7  // Image embed/extract failed
//
// # Error Constructors
//
// Use the provided constructors for consistent error creation:
//
//	errors.ProjectNotFound("storefront")
//	errors.ProcessFailed("start", err)
//	errors.ImportError("archive rejected", err)
//	errors.CodecError("no embedded payload", err)
//
// # Extracting Exit Codes
//
// Use GetExitCode to extract the exit code from an error chain:
//
//	if err != nil {
//	    os.Exit(errors.GetExitCode(err))
//	}
package errors
