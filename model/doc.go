// Package model defines the JSON boundary types shared by the CLI, the
// daemon and the gRPC transport.
//
// UIDs and addresses travel as 0x-hex strings, payloads as 0x-hex bytes and
// values as decimal strings. Ledger identity (UIDs, archived record CIDs) is
// never derived from these projections.
package model
