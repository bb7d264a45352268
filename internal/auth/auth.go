// Package auth signs and verifies requests on behalf of a wallet. A wallet
// is an edwards25519 key pair; its address is the encoded public point.
package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lottery-ledger/internal/address"

	"github.com/btcsuite/btcutil/base58"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
)

// Request headers carrying the signature.
const (
	HeaderSigner    = "X-Lottery-Signer"
	HeaderTimestamp = "X-Lottery-Timestamp"
	HeaderSignature = "X-Lottery-Signature"
)

var (
	ErrMissingHeaders = errors.New("auth: missing signature headers")
	ErrBadSignature   = errors.New("auth: signature does not verify")
	ErrStale          = errors.New("auth: timestamp outside allowed skew")
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// Signer holds the key pair of one wallet.
type Signer struct {
	pair *key.Pair
	addr address.Address
}

// GenerateSigner creates a signer with a fresh key pair.
func GenerateSigner() (*Signer, error) {
	return newSigner(key.NewKeyPair(suite))
}

// LoadSigner restores a signer from the hex encoded secret scalar.
func LoadSigner(secretHex string) (*Signer, error) {
	secret, err := encoding.StringHexToScalar(suite, secretHex)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	return newSigner(&key.Pair{
		Private: secret,
		Public:  suite.Point().Mul(secret, nil),
	})
}

func newSigner(pair *key.Pair) (*Signer, error) {
	pub, err := pair.Public.MarshalBinary()
	if err != nil {
		return nil, err
	}
	addr, err := address.FromBytes(pub)
	if err != nil {
		return nil, err
	}
	return &Signer{pair: pair, addr: addr}, nil
}

// Address returns the wallet address.
func (s *Signer) Address() address.Address { return s.addr }

// SecretHex returns the secret scalar in the form LoadSigner accepts.
func (s *Signer) SecretHex() (string, error) {
	return encoding.ScalarToStringHex(suite, s.pair.Private)
}

// Sign signs the digest of msg.
func (s *Signer) Sign(msg []byte) ([]byte, error) {
	return schnorr.Sign(suite, s.pair.Private, digest(msg))
}

// SignRequest sets the signature headers on req for the given body.
func (s *Signer) SignRequest(req *http.Request, body []byte, now time.Time) error {
	ts := now.Unix()
	sig, err := s.Sign(Message(req.Method, req.URL.Path, ts, body))
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}
	req.Header.Set(HeaderSigner, s.addr.String())
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderSignature, base58.Encode(sig))
	return nil
}

// Message is the byte string a request signature covers.
func Message(method, path string, ts int64, body []byte) []byte {
	msg := make([]byte, 0, len(method)+len(path)+len(body)+24)
	msg = append(msg, method...)
	msg = append(msg, '\n')
	msg = append(msg, path...)
	msg = append(msg, '\n')
	msg = strconv.AppendInt(msg, ts, 10)
	msg = append(msg, '\n')
	return append(msg, body...)
}

// Verify checks that sig is signer's signature over msg.
func Verify(signer address.Address, msg, sig []byte) error {
	pub, err := publicKey(signer)
	if err != nil {
		return err
	}
	if err := schnorr.Verify(suite, pub, digest(msg), sig); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return nil
}

// VerifyRequest authenticates the headers of req against body and returns
// the signing wallet. Timestamps further than skew from now are rejected.
func VerifyRequest(req *http.Request, body []byte, now time.Time, skew time.Duration) (address.Address, error) {
	signerText := req.Header.Get(HeaderSigner)
	tsText := req.Header.Get(HeaderTimestamp)
	sigText := req.Header.Get(HeaderSignature)
	if signerText == "" || tsText == "" || sigText == "" {
		return address.Zero, ErrMissingHeaders
	}

	signer, err := address.Parse(signerText)
	if err != nil {
		return address.Zero, err
	}
	ts, err := strconv.ParseInt(tsText, 10, 64)
	if err != nil {
		return address.Zero, fmt.Errorf("%w: %v", ErrStale, err)
	}
	if d := now.Sub(time.Unix(ts, 0)); d > skew || d < -skew {
		return address.Zero, ErrStale
	}
	sig := base58.Decode(sigText)
	if len(sig) == 0 {
		return address.Zero, ErrBadSignature
	}

	if err := Verify(signer, Message(req.Method, req.URL.Path, ts, body), sig); err != nil {
		return address.Zero, err
	}
	return signer, nil
}

func publicKey(a address.Address) (kyber.Point, error) {
	p := suite.Point()
	if err := p.UnmarshalBinary(a.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: signer is not a public key", ErrBadSignature)
	}
	return p, nil
}

func digest(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}
