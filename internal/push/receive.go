package push

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	"github.com/dukerupert/presenze/internal/model"
)

const (
	saltSize      = 16
	headerMinSize = saltSize + 4 + 1
	tagSize       = 16
	nonceSize     = 12
)

var (
	// ErrUnknownSubscription means the delivery targets an endpoint this
	// device no longer owns.
	ErrUnknownSubscription = errors.New("unknown push subscription")
	// ErrUnauthorized means the VAPID header is missing or does not verify.
	ErrUnauthorized = errors.New("push delivery not authorized")
	// ErrDecrypt covers every malformed or undecryptable body.
	ErrDecrypt = errors.New("push payload decryption failed")
)

// Decrypt opens an RFC 8291 message with the aes128gcm content coding.
// privateKey is the device's raw P-256 scalar, authSecret the 16 byte secret
// shared at subscribe time.
func Decrypt(body, privateKey, authSecret []byte) ([]byte, error) {
	if len(body) < headerMinSize {
		return nil, fmt.Errorf("%w: short header", ErrDecrypt)
	}
	salt := body[:saltSize]
	rs := binary.BigEndian.Uint32(body[saltSize : saltSize+4])
	idLen := int(body[saltSize+4])
	if rs <= tagSize+1 {
		return nil, fmt.Errorf("%w: record size %d", ErrDecrypt, rs)
	}
	if len(body) < headerMinSize+idLen {
		return nil, fmt.Errorf("%w: short key id", ErrDecrypt)
	}
	keyID := body[headerMinSize : headerMinSize+idLen]
	ciphertext := body[headerMinSize+idLen:]
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrDecrypt)
	}

	curve := ecdh.P256()
	priv, err := curve.NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: device key: %v", ErrDecrypt, err)
	}
	senderPub, err := curve.NewPublicKey(keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrDecrypt, err)
	}
	shared, err := priv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", ErrDecrypt, err)
	}

	info := append([]byte("WebPush: info\x00"), priv.PublicKey().Bytes()...)
	info = append(info, senderPub.Bytes()...)
	ikm := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, authSecret, info), ikm); err != nil {
		return nil, fmt.Errorf("%w: ikm: %v", ErrDecrypt, err)
	}

	cek := make([]byte, 16)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: aes128gcm\x00")), cek); err != nil {
		return nil, fmt.Errorf("%w: cek: %v", ErrDecrypt, err)
	}
	baseNonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, salt, []byte("Content-Encoding: nonce\x00")), baseNonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrDecrypt, err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	var out []byte
	for seq := uint64(0); len(ciphertext) > 0; seq++ {
		n := min(int(rs), len(ciphertext))
		record := ciphertext[:n]
		ciphertext = ciphertext[n:]
		last := len(ciphertext) == 0

		plain, err := gcm.Open(nil, recordNonce(baseNonce, seq), record, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDecrypt, seq, err)
		}
		data, err := unpad(plain, last)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrDecrypt, seq, err)
		}
		out = append(out, data...)
	}
	return out, nil
}

// recordNonce XORs the sequence number into the low bytes of the base nonce.
func recordNonce(base []byte, seq uint64) []byte {
	nonce := append([]byte(nil), base...)
	var s [8]byte
	binary.BigEndian.PutUint64(s[:], seq)
	for i := range s {
		nonce[nonceSize-8+i] ^= s[i]
	}
	return nonce
}

// unpad strips the zero padding and the delimiter: 0x02 ends the final
// record, 0x01 every other one.
func unpad(plain []byte, last bool) ([]byte, error) {
	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return nil, errors.New("missing padding delimiter")
	}
	want := byte(0x01)
	if last {
		want = 0x02
	}
	if plain[i] != want {
		return nil, fmt.Errorf("unexpected padding delimiter 0x%02x", plain[i])
	}
	return plain[:i], nil
}

// VerifyVAPID checks an "Authorization: vapid t=<jwt>, k=<key>" header. The
// key must equal applicationServerKey and the token must be an unexpired
// ES256 JWT for audience.
func VerifyVAPID(header, audience string, applicationServerKey []byte) error {
	token, key, err := parseVAPIDHeader(header)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if string(key) != string(applicationServerKey) {
		return fmt.Errorf("%w: key does not match subscription", ErrUnauthorized)
	}

	x, y := elliptic.Unmarshal(elliptic.P256(), key)
	if x == nil {
		return fmt.Errorf("%w: invalid public key", ErrUnauthorized)
	}
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}

	_, err = jwt.Parse(token, func(*jwt.Token) (any, error) {
		return pub, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return nil
}

func parseVAPIDHeader(header string) (token string, key []byte, err error) {
	scheme, params, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "vapid") {
		return "", nil, errors.New("missing vapid authorization")
	}
	var k string
	for _, part := range strings.Split(params, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.ToLower(name) {
		case "t":
			token = value
		case "k":
			k = value
		}
	}
	if token == "" || k == "" {
		return "", nil, errors.New("vapid header needs t and k")
	}
	key, err = decodeKey(k)
	if err != nil {
		return "", nil, fmt.Errorf("decode vapid key: %w", err)
	}
	return token, key, nil
}

// Delivery is one inbound request from a push service.
type Delivery struct {
	SubscriptionID  string
	Authorization   string
	ContentEncoding string
	Body            []byte
}

// Receiver authenticates and decrypts deliveries for the device registration.
type Receiver struct {
	device *Device
}

func NewReceiver(device *Device) *Receiver {
	return &Receiver{device: device}
}

// Receive returns the plaintext of a delivery. An empty body is a valid
// push without payload and yields nil.
func (r *Receiver) Receive(d Delivery) ([]byte, error) {
	reg, err := r.device.Registration()
	if err != nil {
		return nil, fmt.Errorf("load device subscription: %w", err)
	}
	if reg == nil || reg.ID != d.SubscriptionID {
		return nil, ErrUnknownSubscription
	}

	serverKey, err := decodeKey(reg.ApplicationServerKey)
	if err != nil {
		return nil, fmt.Errorf("decode stored server key: %w", err)
	}
	if err := VerifyVAPID(d.Authorization, r.device.Audience(), serverKey); err != nil {
		return nil, err
	}

	if len(d.Body) == 0 {
		return nil, nil
	}
	if enc := strings.TrimSpace(d.ContentEncoding); enc != "" && !strings.EqualFold(enc, "aes128gcm") {
		return nil, fmt.Errorf("%w: unsupported content encoding %q", ErrDecrypt, enc)
	}
	return decryptFor(reg, d.Body)
}

func decryptFor(reg *model.DeviceSubscription, body []byte) ([]byte, error) {
	priv, err := decodeKey(reg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode device key: %w", err)
	}
	secret, err := decodeKey(reg.AuthKey)
	if err != nil {
		return nil, fmt.Errorf("decode auth secret: %w", err)
	}
	return Decrypt(body, priv, secret)
}
