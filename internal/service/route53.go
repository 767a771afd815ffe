// Package service holds integrations that sit behind the update path.
package service

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"go.uber.org/zap"

	"dyndnsd/internal/config"
)

// route53API is the slice of the Route53 client the mirror uses.
type route53API interface {
	ChangeResourceRecordSets(ctx context.Context, params *route53.ChangeResourceRecordSetsInput, optFns ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
}

// Mirror replicates address changes into Route53 hosted zones. Only
// suffixes with a configured zone mapping are mirrored; everything else
// is served from the local database alone.
type Mirror struct {
	client route53API
	zones  map[string]string
	ttl    int64
	log    *zap.Logger
}

func NewMirror(cfg *config.Config, log *zap.Logger) (*Mirror, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.Route53.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Route53.AccessKeyID,
				cfg.Route53.SecretAccessKey,
				"",
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Mirror{
		client: route53.NewFromConfig(awsCfg),
		zones:  cfg.Route53.Zones,
		ttl:    int64(cfg.DNS.TTL),
		log:    log,
	}, nil
}

// SyncAddress pushes one address change to the hosted zone of the host's
// suffix. A nil newAddr deletes the record; deletion needs the previous
// address because Route53 requires the record set to match. Unmapped
// suffixes are skipped without error.
func (m *Mirror) SyncAddress(ctx context.Context, fqdn, suffix, recordType string, newAddr, oldAddr *string) error {
	zoneID, ok := m.zones[suffix]
	if !ok {
		return nil
	}

	var action types.ChangeAction
	var value *string
	switch {
	case newAddr != nil:
		action = types.ChangeActionUpsert
		value = newAddr
	case oldAddr != nil:
		action = types.ChangeActionDelete
		value = oldAddr
	default:
		return nil
	}

	_, err := m.client.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("dyndnsd address sync"),
			Changes: []types.Change{
				{
					Action: action,
					ResourceRecordSet: &types.ResourceRecordSet{
						Name: aws.String(fqdn + "."),
						Type: types.RRType(recordType),
						TTL:  aws.Int64(m.ttl),
						ResourceRecords: []types.ResourceRecord{
							{Value: value},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("route53 %s %s %s: %w", action, recordType, fqdn, err)
	}

	m.log.Debug("mirrored address change",
		zap.String("fqdn", fqdn),
		zap.String("type", recordType),
		zap.String("action", string(action)),
	)
	return nil
}
