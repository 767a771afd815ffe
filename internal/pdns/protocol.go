// Package pdns implements the database-backed answering side of the
// dynamic DNS service: a PowerDNS pipe backend speaking the tab-separated
// line protocol over stdin/stdout, and a remote backend answering lookup
// requests over HTTP. Both drive the same resolver.
//
// See https://doc.powerdns.com/authoritative/backends/pipe.html for the
// pipe protocol specification.
package pdns

import "dyndnsd/internal/txtprot"

// abiVersion is the only pipe protocol ABI version this backend speaks.
const abiVersion = 1

// banner is sent in the OK handshake reply.
const banner = "dyndnsd"

// Pipe protocol message declarations. The schema is data, not parsing
// code; the codec dispatches on the leading tag.
var (
	declHELO = txtprot.Declare("HELO", txtprot.Int("version"))
	declQ    = txtprot.Declare("Q",
		txtprot.String("qname"),
		txtprot.String("qclass"),
		txtprot.String("qtype"),
		txtprot.Int("id"),
		txtprot.String("remote"))
	declAXFR = txtprot.Declare("AXFR", txtprot.Int("id"))
	declPING = txtprot.Declare("PING")

	declOK   = txtprot.Declare("OK", txtprot.String("banner"))
	declDATA = txtprot.Declare("DATA",
		txtprot.String("qname"),
		txtprot.String("qclass"),
		txtprot.String("qtype"),
		txtprot.String("ttl"),
		txtprot.Int("id"),
		txtprot.String("content"))
	declLOG  = txtprot.Declare("LOG", txtprot.String("message"))
	declEND  = txtprot.Declare("END")
	declFAIL = txtprot.Declare("FAIL")
)

var (
	pipeLexer = txtprot.NewLexer("\t",
		declHELO, declQ, declAXFR, declPING)

	pipeFormatter = txtprot.NewFormatter("\t",
		declOK, declDATA, declLOG, declEND, declFAIL)
)
