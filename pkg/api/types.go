package api

// UID is the OS-level identity a request executes under.
type UID int

const (
	// UIDSystem is the privileged system identity. It is never filtered.
	UIDSystem UID = 1000

	// PackageAndroid is the framework package. It is visible to everyone.
	PackageAndroid = "android"
)

// FirstApplicationUID is the lowest identity assigned to installed apps.
// Identities below it belong to the platform.
const FirstApplicationUID UID = 10000
