// Package nic implements the DynDNS-compatible update API consumed by
// unattended client software (ddclient, inadyn, router firmware). The
// response tokens are read by those clients verbatim and are a fixed wire
// contract; see http://www.noip.com/integrate for the protocol.
package nic

// Response is one line of an update response. Exactly one response is
// emitted per requested hostname, in request order.
type Response struct {
	Code  string
	Value string
}

func (r Response) String() string {
	if r.Value != "" {
		return r.Code + " " + r.Value
	}
	return r.Code
}

// The fixed token vocabulary. Tokens must never be altered or translated.
const (
	CodeGood       = "good"
	CodeNoChg      = "nochg"
	CodeNoHost     = "nohost"
	CodeBadAuth    = "badauth"
	CodeBadAgent   = "badagent"
	CodeNotDonator = "!donator"
	CodeAbuse      = "abuse"
	CodeServerErr  = "911"
)

func respGood(value string) Response  { return Response{Code: CodeGood, Value: value} }
func respNoChg(value string) Response { return Response{Code: CodeNoChg, Value: value} }

var (
	respNoHost    = Response{Code: CodeNoHost}
	respBadAuth   = Response{Code: CodeBadAuth}
	respAbuse     = Response{Code: CodeAbuse}
	respServerErr = Response{Code: CodeServerErr}
)
