// Package nonce provides single-use, time-bounded tokens for message
// replay protection.
//
// The envelope verifier consumes a nonce on every verification, so
// verifying the same envelope twice fails the second time. The Manager
// guarantees the one-winner property under concurrency: of N simultaneous
// checks of the same value, exactly one succeeds.
//
//	nonces := nonce.NewManager(10 * time.Minute)
//	if !nonces.IsValidNonce(env.Header.Nonce) {
//	    // replayed or missing nonce: fail closed
//	}
package nonce
