package txn

// Version is the CLI's reported version string.
const Version = "1.0.0"
