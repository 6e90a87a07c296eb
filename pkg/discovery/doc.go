// Package discovery advertises lock devices over DNS-SD (mDNS) and lets
// reader heads find them.
//
// A lock registers one instance of _rfidlock._udp on the port its reader
// link listens on. TXT records:
//
//	ver  protocol version of the reader frame format
//	en   1 once a trusted credential is enrolled, else 0
//	dn   human-readable device name
//
// mDNS records are immutable once announced, so a TXT change is published by
// re-registering the same instance name.
package discovery
