package types

// Version is the canonical project version.
// The CLI, the event journal format and published export records share
// this version.
const Version = "0.1.0"

// JournalVersion is the event journal format version written into every
// journal header frame. Kept in lockstep with Version.
const JournalVersion = Version
