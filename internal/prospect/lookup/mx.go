package lookup

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var DefaultNameservers = []string{"8.8.8.8:53", "1.1.1.1:53"}

// MXResolver queries public resolvers directly so results do not depend on the
// container's resolv.conf.
type MXResolver struct {
	client      *dns.Client
	nameservers []string
}

func NewMXResolver(timeout time.Duration, nameservers ...string) *MXResolver {
	if len(nameservers) == 0 {
		nameservers = DefaultNameservers
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MXResolver{
		client:      &dns.Client{Timeout: timeout},
		nameservers: nameservers,
	}
}

// Lookup returns the MX hosts of domain ordered by preference. NXDOMAIN and an
// empty answer are both "no records", not errors; an error means no
// nameserver could be reached.
func (r *MXResolver) Lookup(ctx context.Context, domain string) ([]string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, nil
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.nameservers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode == dns.RcodeNameError {
			return nil, nil
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = errors.New(dns.RcodeToString[resp.Rcode])
			continue
		}
		return mxHosts(resp.Answer), nil
	}
	return nil, lastErr
}

func mxHosts(answer []dns.RR) []string {
	var records []*dns.MX
	for _, rr := range answer {
		if mx, ok := rr.(*dns.MX); ok {
			records = append(records, mx)
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Preference < records[j].Preference })

	hosts := make([]string, 0, len(records))
	for _, mx := range records {
		hosts = append(hosts, strings.TrimSuffix(mx.Mx, "."))
	}
	return hosts
}
