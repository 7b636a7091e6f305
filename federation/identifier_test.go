package federation

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testKey() ProposalKey {
	var k ProposalKey
	for i := range k.OriginalTokenAddress {
		k.OriginalTokenAddress[i] = 0x11
		k.TransactionHash[i] = 0x22
	}
	k.Value = big.NewInt(1000)
	k.Sender = "0xsender"
	k.Receiver = "receiver"
	k.TransactionType = TransactionTypeMint
	return k
}

func TestKeccakEmptyInput(t *testing.T) {
	assert.Equal(t, "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", keccak256().String())
}

func TestTransactionIDKnownVector(t *testing.T) {
	id, err := TransactionID(testKey())
	assert.Nil(t, err)
	assert.Equal(t, "0x18be9e5edbc2737701403eecf4f2a4880d2deb61deef559dfb714922e2fc2cf7", id.String())
}

func TestTransactionIDDeterministic(t *testing.T) {
	a, err := TransactionID(testKey())
	assert.Nil(t, err)
	b, err := TransactionID(testKey())
	assert.Nil(t, err)
	assert.Equal(t, a, b)
}

func TestTransactionIDEachFieldMatters(t *testing.T) {
	base, err := TransactionID(testKey())
	assert.Nil(t, err)

	mutations := map[string]func(k *ProposalKey){
		"token":    func(k *ProposalKey) { k.OriginalTokenAddress[0] = 0 },
		"hash":     func(k *ProposalKey) { k.TransactionHash[31] = 0 },
		"value":    func(k *ProposalKey) { k.Value = big.NewInt(1001) },
		"sender":   func(k *ProposalKey) { k.Sender = "0xsendes" },
		"receiver": func(k *ProposalKey) { k.Receiver = "receives" },
		"type":     func(k *ProposalKey) { k.TransactionType = TransactionTypeTransfer },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			k := testKey()
			mutate(&k)
			id, err := TransactionID(k)
			assert.Nil(t, err)
			assert.NotEqual(t, base, id)
		})
	}
}

func TestTransactionIDInvalidValue(t *testing.T) {
	k := testKey()
	k.Value = nil
	_, err := TransactionID(k)
	assert.ErrorIs(t, err, ErrInvalidValue)

	k.Value = big.NewInt(-1)
	_, err = TransactionID(k)
	assert.ErrorIs(t, err, ErrInvalidValue)

	k.Value = new(big.Int).Lsh(big.NewInt(1), 256)
	_, err = TransactionID(k)
	assert.ErrorIs(t, err, ErrInvalidValue)

	k.Value = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err = TransactionID(k)
	assert.Nil(t, err)
}

func TestParseTxID(t *testing.T) {
	id, err := TransactionID(testKey())
	assert.Nil(t, err)

	parsed, err := ParseTxID(id.String())
	assert.Nil(t, err)
	assert.Equal(t, id, parsed)

	parsed, err = ParseTxID(strings.TrimPrefix(id.String(), "0x"))
	assert.Nil(t, err)
	assert.Equal(t, id, parsed)

	_, err = ParseTxID("0x1234")
	assert.NotNil(t, err)
	_, err = ParseTxID("0xzz")
	assert.NotNil(t, err)
}

func TestProposalKeyJSON(t *testing.T) {
	raw := []byte(`{
		"original_token_address": "0x1111",
		"transaction_hash": "0x2222222222222222222222222222222222222222222222222222222222222222",
		"value": 1000,
		"sender": "alice",
		"receiver": "bob",
		"transaction_type": 2
	}`)
	var k ProposalKey
	assert.Nil(t, json.Unmarshal(raw, &k))
	assert.Equal(t, byte(0x11), k.OriginalTokenAddress[0])
	assert.Equal(t, byte(0x11), k.OriginalTokenAddress[1])
	assert.Equal(t, byte(0), k.OriginalTokenAddress[2])
	assert.Equal(t, byte(0x22), k.TransactionHash[31])
	assert.Equal(t, int64(1000), k.Value.Int64())
	assert.Equal(t, TransactionTypeTransfer, k.TransactionType)

	out, err := json.Marshal(k)
	assert.Nil(t, err)
	var back ProposalKey
	assert.Nil(t, json.Unmarshal(out, &back))
	assert.Equal(t, k.OriginalTokenAddress, back.OriginalTokenAddress)
	assert.Equal(t, 0, k.Value.Cmp(back.Value))
}

func TestBytes32TooLong(t *testing.T) {
	var b Bytes32
	err := b.UnmarshalText([]byte("0x" + strings.Repeat("ab", 33)))
	assert.NotNil(t, err)
}
