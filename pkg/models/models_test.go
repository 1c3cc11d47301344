package models

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPhrase  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
	testPhrase2 = "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo vote"
	// Private key 0C28FCA3...AA1D from the bitcoin wiki WIF example.
	testWIF = "5HueCGU8rMjxEXxiPuD5BDku4MkFqeZyd4dZ1jvhTVqvbTLvyTJ"
)

func TestNetworkFromID(t *testing.T) {
	tests := []struct {
		id      int
		want    Network
		wantErr bool
	}{
		{0, NetworkTestnet, false},
		{1, NetworkMainnet, false},
		{2, Network{}, true},
		{-1, Network{}, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.id), func(t *testing.T) {
			got, err := NetworkFromID(tt.id)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("NetworkFromID(%d) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
	if !NetworkMainnet.IsMainnet() || NetworkMainnet.IsTestnet() {
		t.Error("mainnet flags are wrong")
	}
}

func TestNewAccount(t *testing.T) {
	for _, v := range []int{-1, 0, 1, 42} {
		a, err := NewAccount(v)
		if err != nil {
			t.Fatalf("NewAccount(%d): %v", v, err)
		}
		if a.Value() != v {
			t.Errorf("Value() = %d, want %d", a.Value(), v)
		}
	}
	if _, err := NewAccount(-2); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for -2, got %v", err)
	}
	if !AccountImported.IsImported() || AccountDefault.IsImported() {
		t.Error("IsImported mismatch")
	}
}

func TestSeedPhrase(t *testing.T) {
	p, err := NewSeedPhrase(testPhrase)
	require.NoError(t, err)
	assert.Len(t, p.Words(), SeedPhraseSize)
	assert.Equal(t, testPhrase, p.Joined())
	assert.Len(t, p.ToSeed(), 64)

	_, err = NewSeedPhrase("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about")
	assert.ErrorIs(t, err, ErrValidation, "12 words must be rejected")

	bad := strings.Replace(testPhrase, "art", "zoo", 1)
	_, err = NewSeedPhrase(bad)
	assert.ErrorIs(t, err, ErrValidation, "bad checksum must be rejected")

	gen, err := GenerateSeedPhrase()
	require.NoError(t, err)
	assert.Len(t, gen.Words(), SeedPhraseSize)
}

func TestSeedPhrase_NeverPrinted(t *testing.T) {
	p, err := NewSeedPhrase(testPhrase)
	require.NoError(t, err)
	seed := SeedFromPhrase(p)

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("loaded", "phrase", p, "seed", seed)

	out := fmt.Sprintf("%v %s %v", p, seed, sb.String())
	assert.NotContains(t, out, "abandon")
}

func TestSeedMaterial(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	s, err := SeedFromBytes(raw)
	require.NoError(t, err)

	raw[0] = 9
	assert.Equal(t, []byte{1, 2, 3, 4}, s.Bytes(), "construction must copy")

	b := s.Bytes()
	b[1] = 9
	assert.Equal(t, []byte{1, 2, 3, 4}, s.Bytes(), "read must copy")
	assert.Equal(t, "01020304", s.Hex())

	h, err := SeedFromHex("01020304")
	require.NoError(t, err)
	assert.True(t, s.Equal(h))

	_, err = SeedFromHex("zz")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = SeedFromBytes(nil)
	assert.ErrorIs(t, err, ErrValidation)

	s.Wipe()
	assert.Equal(t, []byte{0, 0, 0, 0}, s.Bytes())
}

func TestUnifiedSpendingKey_DefensiveCopy(t *testing.T) {
	src := []byte{1, 2, 3}
	k, err := NewUnifiedSpendingKey(AccountDefault, src)
	require.NoError(t, err)

	src[0] = 7
	got := k.CopyBytes()
	assert.Equal(t, []byte{1, 2, 3}, got)
	got[0] = 7
	assert.Equal(t, []byte{1, 2, 3}, k.CopyBytes())

	same, _ := NewUnifiedSpendingKey(AccountDefault, []byte{1, 2, 3})
	other, _ := NewUnifiedSpendingKey(1, []byte{1, 2, 3})
	assert.True(t, k.Equal(same))
	assert.False(t, k.Equal(other))
	assert.NotContains(t, k.String(), "010203")

	k.Wipe()
	assert.Equal(t, []byte{0, 0, 0}, k.CopyBytes())

	_, err = NewUnifiedSpendingKey(AccountDefault, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = NewShieldedSpendingKey(AccountDefault, []byte{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAgreementTypes(t *testing.T) {
	epk, err := EphemeralPublicKeyFromHex("aabb")
	require.NoError(t, err)
	assert.Equal(t, "aabb", epk.Hex())
	assert.True(t, epk.Equal(NewEphemeralPublicKey([]byte{0xaa, 0xbb})))

	_, err = SharedSecretFromHex("not-hex")
	assert.ErrorIs(t, err, ErrValidation)

	s := NewSharedSecret([]byte{1, 2})
	assert.NotContains(t, s.String(), "0102")
	s.Wipe()
	assert.Equal(t, []byte{0, 0}, s.CopyBytes())
}

func TestChannelKeys(t *testing.T) {
	k, err := NewChannelKeys("zs1abc", []byte{1}, []byte{2}, nil)
	require.NoError(t, err)
	assert.False(t, k.HasSpendingKey())
	assert.Nil(t, k.CopySpendingKeyBytes())
	assert.Equal(t, "ChannelKeys(address=zs1abc)", k.String())

	withSK, err := NewChannelKeys("zs1abc", []byte{1}, []byte{2}, []byte{3})
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, withSK.CopySpendingKeyBytes())
	assert.False(t, k.Equal(withSK))

	_, err = NewChannelKeys("", []byte{1}, []byte{2}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSubmitResults(t *testing.T) {
	ok := []TransactionSubmitResult{SubmitSuccess{ID: "a"}, SubmitSuccess{ID: "b"}}
	assert.True(t, AllSucceeded(ok))

	mixed := append(ok, SubmitFailure{ID: "c", Code: 1}, SubmitNotAttempted{ID: "d"})
	assert.False(t, AllSucceeded(mixed))
	assert.Equal(t, "d", mixed[3].TxID())
}

func TestZecSend_Validate(t *testing.T) {
	assert.NoError(t, ZecSend{Destination: "zs1", Amount: 1}.Validate())
	assert.ErrorIs(t, ZecSend{Amount: 1}.Validate(), ErrValidation)
	assert.ErrorIs(t, ZecSend{Destination: "zs1"}.Validate(), ErrValidation)
	assert.Equal(t, "1.50000000", Zatoshi(150_000_000).String())
}

func TestPersistableWallet_JSON(t *testing.T) {
	p, err := NewSeedPhrase(testPhrase)
	require.NoError(t, err)
	w := &PersistableWallet{
		Network:  NetworkMainnet,
		Endpoint: "lightwalletd.example:443",
		Birthday: 1_500_000,
		Seed:     SeedFromPhrase(p),
		InitMode: WalletInitNew,
		WIF:      testWIF,
	}

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v":1`)

	var got PersistableWallet
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, w.Network, got.Network)
	assert.Equal(t, w.Birthday, got.Birthday)
	assert.Equal(t, w.InitMode, got.InitMode)
	assert.True(t, w.Seed.Equal(got.Seed))

	key, err := got.TransparentKey()
	require.NoError(t, err)
	assert.Equal(t, "0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d", hex.EncodeToString(key))
}

func TestPersistableWallet_Rejects(t *testing.T) {
	tests := map[string]string{
		"version":  `{"v":2,"network_ID":1,"seed_phrase":"` + testPhrase + `"}`,
		"network":  `{"v":1,"network_ID":7,"seed_phrase":"` + testPhrase + `"}`,
		"no seed":  `{"v":1,"network_ID":1}`,
		"bad seed": `{"v":1,"network_ID":1,"seed_phrase":"one two"}`,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			var w PersistableWallet
			assert.ErrorIs(t, json.Unmarshal([]byte(data), &w), ErrValidation)
		})
	}

	w := PersistableWallet{WIF: "notawif"}
	_, err := w.TransparentKey()
	assert.ErrorIs(t, err, ErrValidation)
}

func TestZero(t *testing.T) {
	a := []byte{1, 2, 3}
	b := []byte{4, 5}
	Zero(a, b, nil)
	assert.Equal(t, []byte{0, 0, 0}, a)
	assert.Equal(t, []byte{0, 0}, b)
}
