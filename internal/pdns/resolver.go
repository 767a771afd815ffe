package pdns

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"dyndnsd/internal/config"
	"dyndnsd/internal/model"
)

// Store is the slice of the persistence layer the resolver needs.
// *database.DB satisfies it.
type Store interface {
	GetSuffixByName(name string) (*model.Suffix, error)
	AnswerHost(fqdn string) (*model.Host, error)
}

// Resolver translates a parsed query into zero or more answer records,
// independent of transport. A store failure during lookup is logged and
// yields no answer; returning empty is safer for the long-lived protocol
// session than desynchronizing it with an error.
type Resolver struct {
	store     Store
	ttl       int
	soaTTL    int
	answerSOA bool
	log       *zap.Logger
}

func NewResolver(store Store, cfg config.DNSConfig, log *zap.Logger) *Resolver {
	return &Resolver{
		store:     store,
		ttl:       cfg.TTL,
		soaTTL:    cfg.SOATTL,
		answerSOA: cfg.AnswerSOA,
		log:       log,
	}
}

// Lookup answers a (qname, qtype) query. qtype is the textual record type;
// ANY matches every supported type. A trailing root dot on qname is
// stripped so both backend protocol variants resolve identically.
func (r *Resolver) Lookup(qname, qtype string) []model.ResourceRecord {
	name := strings.TrimSuffix(qname, ".")

	var records []model.ResourceRecord

	if qtype == "SOA" || qtype == "ANY" {
		if rec := r.lookupSOA(name); rec != nil {
			records = append(records, *rec)
		}
	}

	if qtype == "A" || qtype == "AAAA" || qtype == "ANY" {
		records = append(records, r.lookupAddress(name, qtype)...)
	}

	// All other query types are ignored; no answer is not an error.
	return records
}

// lookupSOA synthesizes a placeholder SOA for names that exactly match a
// configured suffix. It is enough to satisfy the DNS server's zone sanity
// checks; deployments that delegate SOA elsewhere disable it.
func (r *Resolver) lookupSOA(name string) *model.ResourceRecord {
	if !r.answerSOA {
		return nil
	}

	suffix, err := r.store.GetSuffixByName(name)
	if err != nil {
		r.log.Error("suffix lookup failed", zap.String("qname", name), zap.Error(err))
		return nil
	}
	if suffix == nil {
		return nil
	}

	content := fmt.Sprintf("ns.%s hostmaster.%s 0 86400 7200 3600000 172800", name, name)
	return &model.ResourceRecord{
		QName:   name,
		QType:   "SOA",
		Content: content,
		TTL:     r.soaTTL,
	}
}

func (r *Resolver) lookupAddress(name, qtype string) []model.ResourceRecord {
	host, err := r.store.AnswerHost(name)
	if err != nil {
		r.log.Error("host lookup failed", zap.String("qname", name), zap.Error(err))
		return nil
	}
	if host == nil {
		return nil
	}

	var records []model.ResourceRecord
	if (qtype == "A" || qtype == "ANY") && host.Address != nil {
		records = append(records, model.ResourceRecord{
			QName:   name,
			QType:   "A",
			Content: *host.Address,
			TTL:     r.ttl,
		})
	}
	if (qtype == "AAAA" || qtype == "ANY") && host.AddressV6 != nil {
		records = append(records, model.ResourceRecord{
			QName:   name,
			QType:   "AAAA",
			Content: *host.AddressV6,
			TTL:     r.ttl,
		})
	}
	return records
}
