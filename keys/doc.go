// Package keys manages local secp256k1 attester keys and signs request
// envelopes.
//
// Keys live under <dir>/<attester>/root.key with role keys under
// <dir>/<attester>/roles/<role>.key, each file holding one hex-encoded
// 32-byte private scalar. Each key is one attestation address.
package keys
