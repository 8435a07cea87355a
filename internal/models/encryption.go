package models

// Parameters for the AES-GCM at-rest encryption used by the job store.
const (
	KeySize    = 32     // AES-256
	NonceSize  = 12     // GCM standard nonce size
	Iterations = 100000 // PBKDF2 iterations
)
