package pdns

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"dyndnsd/internal/txtprot"
)

// Pipe runs one pipe backend session: a blocking read loop over standard
// input, strictly single-threaded. Each query is processed fully before
// the next line is read since the protocol correlates Q to DATA/END only
// by position and the echoed id field.
type Pipe struct {
	resolver *Resolver
	in       *bufio.Scanner
	out      io.Writer
	log      *zap.Logger
}

func NewPipe(resolver *Resolver, in io.Reader, out io.Writer, log *zap.Logger) *Pipe {
	return &Pipe{
		resolver: resolver,
		in:       bufio.NewScanner(in),
		out:      out,
		log:      log,
	}
}

// Run processes messages until input is exhausted. No inbound line may
// take down the loop: unknown tags, framing errors and store failures all
// degrade to a FAIL or empty answer for that line only.
//
// Exactly one HELO handshake must succeed before any command is served.
func (p *Pipe) Run() error {
	greeted := false

	for p.in.Scan() {
		line := p.in.Text()
		p.log.Debug("received line", zap.String("line", line))

		msg, err := pipeLexer.Lex(line)
		if err != nil {
			p.log.Error("failed to parse line", zap.String("line", line), zap.Error(err))
			p.send(declFAIL)
			continue
		}

		if !greeted {
			greeted = p.handshake(msg)
			continue
		}
		p.serve(msg)
	}

	if err := p.in.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// handshake handles messages while no HELO has been accepted yet. Anything
// but a HELO with the supported ABI version is answered with FAIL and the
// session stays unestablished.
func (p *Pipe) handshake(msg txtprot.Message) bool {
	if msg.Tag() != declHELO.Tag() {
		p.log.Error("missing HELO before command", zap.String("tag", msg.Tag()))
		p.send(declFAIL)
		return false
	}
	if version := msg.Int("version"); version != abiVersion {
		p.log.Error("unsupported ABI version", zap.Int("version", version))
		p.send(declFAIL)
		return false
	}
	p.send(declOK, banner)
	return true
}

func (p *Pipe) serve(msg txtprot.Message) {
	switch msg.Tag() {
	case declHELO.Tag():
		p.log.Error("duplicated HELO")
		p.send(declFAIL)

	case declQ.Tag():
		records := p.resolver.Lookup(msg.String("qname"), msg.String("qtype"))
		for _, rec := range records {
			// qname, qclass and id echo the inbound query so the server
			// can correlate the answer.
			p.send(declDATA,
				msg.String("qname"),
				msg.String("qclass"),
				rec.QType,
				strconv.Itoa(rec.TTL),
				msg.Int("id"),
				rec.Content)
		}
		p.send(declEND)

	case declAXFR.Tag():
		// Zone transfer is not supported.
		p.send(declEND)

	case declPING.Tag():
		p.send(declEND)

	default:
		p.log.Error("unhandled message tag", zap.String("tag", msg.Tag()))
		p.send(declFAIL)
	}
}

func (p *Pipe) send(decl txtprot.Decl, values ...any) {
	msg, err := decl.New(values...)
	if err != nil {
		// A declaration/values mismatch is a programming error; it must
		// not kill the session loop.
		p.log.Error("failed to build message", zap.String("tag", decl.Tag()), zap.Error(err))
		return
	}
	line, err := pipeFormatter.Format(msg)
	if err != nil {
		p.log.Error("failed to format message", zap.String("tag", decl.Tag()), zap.Error(err))
		return
	}

	p.log.Debug("responding line", zap.String("line", line))
	fmt.Fprintln(p.out, line)
}
