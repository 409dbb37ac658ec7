package mcpcat

// Version is the SDK version reported to the backend.
const Version = "0.4.0"
