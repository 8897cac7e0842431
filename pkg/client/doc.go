// Package client provides HTTP clients for the two remote parties of a
// payment flow: the merchant agent (cart signing, with polling for
// merchants that review carts asynchronously) and the credential
// provider (user authorization attestation).
package client
