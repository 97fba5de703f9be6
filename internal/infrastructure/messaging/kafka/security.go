package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/molscore/pkg/errors"
)

// SecurityConfig holds SASL and TLS settings shared by readers and writers.
type SecurityConfig struct {
	SASLMechanism string // "" | PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCAFile     string
}

func (s SecurityConfig) validate() error {
	switch s.SASLMechanism {
	case "":
		return nil
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		if s.SASLUsername == "" || s.SASLPassword == "" {
			return errors.InvalidParam("SASL credentials required")
		}
		return nil
	default:
		return errors.InvalidParam("unsupported SASL mechanism").WithDetail(s.SASLMechanism)
	}
}

func (s SecurityConfig) mechanism() (sasl.Mechanism, error) {
	var (
		mech sasl.Mechanism
		err  error
	)
	switch s.SASLMechanism {
	case "":
		return nil, nil
	case "PLAIN":
		mech = plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}
	case "SCRAM-SHA-256":
		mech, err = scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		mech, err = scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	default:
		return nil, errors.InvalidParam("unsupported SASL mechanism").WithDetail(s.SASLMechanism)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create SASL mechanism")
	}
	return mech, nil
}

func (s SecurityConfig) tlsConfig() (*tls.Config, error) {
	if !s.TLSEnabled {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.TLSCAFile != "" {
		caCert, err := os.ReadFile(s.TLSCAFile)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidParam, "failed to read kafka ca file").WithDetail(s.TLSCAFile)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(caCert)
		cfg.RootCAs = pool
	}
	return cfg, nil
}
