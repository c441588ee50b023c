// Package chain - подпись и отправка транзакций в Solana.
package chain

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Ошибки кошелька
var (
	ErrInvalidKeySize = errors.New("wallet key must decode to 64 bytes (ed25519 secret key)")
	ErrMalformedTx    = errors.New("malformed transaction payload")
)

// Wallet - ed25519 ключ для подписи транзакций
//
// Секретный ключ в формате Solana: 64 байта base58
// (32 байта seed + 32 байта публичного ключа).
type Wallet struct {
	priv ed25519.PrivateKey
}

// NewWallet создаёт кошелёк из base58 секретного ключа
func NewWallet(privateKeyBase58 string) (*Wallet, error) {
	raw, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode wallet key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	return &Wallet{priv: ed25519.PrivateKey(raw)}, nil
}

// PublicKey возвращает base58 публичный ключ (адрес кошелька)
func (w *Wallet) PublicKey() string {
	pub := w.priv.Public().(ed25519.PublicKey)
	return base58.Encode(pub)
}

// SignTransaction подписывает сериализованную транзакцию
//
// Формат wire транзакции:
//
//	[compact-u16 количество подписей][64 байта на подпись]...[message]
//
// Venue возвращает транзакцию с зарезервированными пустыми слотами
// подписей. Подписываем message нашим ключом и кладём подпись в
// первый слот (fee payer). Количество подписей < 128, поэтому
// compact-u16 здесь всегда один байт.
func (w *Wallet) SignTransaction(tx []byte) ([]byte, error) {
	if len(tx) < 1 {
		return nil, ErrMalformedTx
	}

	numSigs := int(tx[0])
	if numSigs < 1 || numSigs > 127 {
		return nil, fmt.Errorf("%w: signature count %d", ErrMalformedTx, numSigs)
	}

	messageStart := 1 + numSigs*64
	if len(tx) <= messageStart {
		return nil, fmt.Errorf("%w: too short for %d signatures", ErrMalformedTx, numSigs)
	}

	message := tx[messageStart:]
	signature := ed25519.Sign(w.priv, message)

	signed := make([]byte, len(tx))
	copy(signed, tx)
	copy(signed[1:1+64], signature)

	return signed, nil
}
