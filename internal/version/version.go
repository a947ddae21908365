package version

// Version is overridden at build time with
// -ldflags "-X chatbot-demo/internal/version.Version=...".
var Version = "dev"
