// Package protocol implements the Pico wire codec.
//
// Pico controllers speak a JSON datagram protocol over UDP. Every request
// carries a sequential identifier ("idp") that the controller echoes back in
// its replies, which is the sole correlation key. The controller answers a
// request with two frames: a short acknowledgement (res=99, frm="mst")
// confirming receipt, followed by a full response carrying the result.
//
// The codec is a pure encode/decode boundary: it assigns the IDP on the way
// out and classifies frames on the way in. It never interprets command
// semantics; that is the job of package pico.
package protocol
