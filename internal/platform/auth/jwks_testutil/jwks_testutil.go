package jwks_testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devlogs/devlogs-api/internal/platform/auth/sessiontoken"
)

// Keypair is a signing key published under Kid. Private is *rsa.PrivateKey or *ecdsa.PrivateKey.
type Keypair struct {
	Kid     string
	Private crypto.Signer
}

func GenerateRSAKeypair(kid string) (Keypair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

func GenerateECKeypair(kid string) (Keypair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Kid: kid, Private: priv}, nil
}

// Method returns the JWT signing method matching the key type.
func (kp Keypair) Method() jwt.SigningMethod {
	if _, ok := kp.Private.(*ecdsa.PrivateKey); ok {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

// MarshalJWKS renders the public halves of keys as a JWKS document.
func MarshalJWKS(keys []Keypair) ([]byte, error) {
	enc := base64.RawURLEncoding
	out := jwks{Keys: make([]jwk, 0, len(keys))}
	for _, kp := range keys {
		switch priv := kp.Private.(type) {
		case *rsa.PrivateKey:
			// e is a big-endian unsigned int.
			e := big.NewInt(int64(priv.PublicKey.E)).Bytes()
			out.Keys = append(out.Keys, jwk{
				Kty: "RSA",
				Use: "sig",
				Alg: "RS256",
				Kid: kp.Kid,
				N:   enc.EncodeToString(priv.PublicKey.N.Bytes()),
				E:   enc.EncodeToString(e),
			})
		case *ecdsa.PrivateKey:
			size := (priv.Curve.Params().BitSize + 7) / 8
			out.Keys = append(out.Keys, jwk{
				Kty: "EC",
				Use: "sig",
				Alg: "ES256",
				Kid: kp.Kid,
				Crv: "P-256",
				X:   enc.EncodeToString(priv.PublicKey.X.FillBytes(make([]byte, size))),
				Y:   enc.EncodeToString(priv.PublicKey.Y.FillBytes(make([]byte, size))),
			})
		}
	}
	return json.Marshal(out)
}

// JWKSServer serves a key set that can be swapped at runtime and counts requests.
type JWKSServer struct {
	*httptest.Server

	doc  atomic.Value // []byte
	hits atomic.Int64
}

// NewRotatingJWKSServer returns a JWKS server whose key set can be swapped with SetKeys.
func NewRotatingJWKSServer() *JWKSServer {
	s := &JWKSServer{}
	s.doc.Store([]byte(`{"keys":[]}`))
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(s.doc.Load().([]byte))
	}))
	return s
}

func (s *JWKSServer) SetKeys(keys []Keypair) {
	b, err := MarshalJWKS(keys)
	if err != nil {
		panic(err)
	}
	s.doc.Store(b)
}

// Hits reports how many times the key set was served.
func (s *JWKSServer) Hits() int64 { return s.hits.Load() }

// Claims builds a session claim set for sub issued at now and expiring after expDelta.
func Claims(sub, email string, now time.Time, expDelta time.Duration) sessiontoken.Claims {
	return sessiontoken.Claims{
		Email: email,
		Role:  sessiontoken.RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Audience:  jwt.ClaimStrings{sessiontoken.AudienceAuthenticated},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expDelta)),
		},
	}
}

// MintAsymmetric signs claims with kp (RS256 or ES256 depending on the key type).
func MintAsymmetric(kp Keypair, claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(kp.Method(), claims)
	t.Header["kid"] = kp.Kid
	return t.SignedString(kp.Private)
}

// MintSymmetric signs claims with secret using method (HS256/HS384/HS512).
func MintSymmetric(method jwt.SigningMethod, secret string, claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
}
