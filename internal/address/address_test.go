package address

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testProgram = MustParse("CpEVMvSsqTjx4Ajo4J7tbVSaqwR7nR5fwGFqMLAQ1ndr")

func TestParseRoundTrip(t *testing.T) {
	a := MustParse("2q79WzkjgEqPoBAWeEP2ih51q6TYp8D9DYWWMeLHK6WP")
	assert.Equal(t, "2q79WzkjgEqPoBAWeEP2ih51q6TYp8D9DYWWMeLHK6WP", a.String())

	_, err := Parse("not-base58-0OIl")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = Parse("abc")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = FromBytes(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressJSON(t *testing.T) {
	in := struct {
		A Address `json:"a"`
	}{A: testProgram}

	buf, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"CpEVMvSsqTjx4Ajo4J7tbVSaqwR7nR5fwGFqMLAQ1ndr"}`, string(buf))

	var out struct {
		A Address `json:"a"`
	}
	require.NoError(t, json.Unmarshal(buf, &out))
	assert.Equal(t, testProgram, out.A)
}

func TestU64LittleEndian(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 0, 0, 0}, U64(1))
	assert.Equal(t, []byte{0x02, 0x01, 0, 0, 0, 0, 0, 0}, U64(0x0102))
}

func TestFindProgramAddressIsOffCurve(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("round"), U64(1)}, testProgram)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(addr))

	again, err := CreateProgramAddress([][]byte{[]byte("round"), U64(1), {bump}}, testProgram)
	require.NoError(t, err)
	assert.Equal(t, addr, again)
}

func TestFindProgramAddressKnownAnswers(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("helloWorld")}, MustParse("11111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, "46GZzzetjCURsdFPb7rcnspbEMnCBXe9kpjrsZAkKb6X", addr.String())
	assert.Equal(t, uint8(254), bump)

	r := NewResolver(testProgram)
	round, bump := r.Round(1)
	assert.Equal(t, "GLbnxeQ2cTu8dvg9XUzUNKw2ePcvdnCChGgrnee2wzfk", round.String())
	assert.Equal(t, uint8(253), bump)

	vault, bump := r.Vault(1)
	assert.Equal(t, "9YnjJNXrzexSefTFfWE29bgsLammKaPh637nMiwHv96p", vault.String())
	assert.Equal(t, uint8(255), bump)
}

func TestSeedLimits(t *testing.T) {
	_, _, err := FindProgramAddress([][]byte{make([]byte, 33)}, testProgram)
	assert.ErrorIs(t, err, ErrSeedTooLong)

	seeds := make([][]byte, MaxSeeds)
	_, _, err = FindProgramAddress(seeds, testProgram)
	assert.ErrorIs(t, err, ErrTooManySeeds)
}

func TestResolver(t *testing.T) {
	r := NewResolver(testProgram)
	buyer := MustParse("2q79WzkjgEqPoBAWeEP2ih51q6TYp8D9DYWWMeLHK6WP")

	t.Run("deterministic", func(t *testing.T) {
		a, ab := r.Round(7)
		b, bb := NewResolver(testProgram).Round(7)
		assert.Equal(t, a, b)
		assert.Equal(t, ab, bb)
	})

	t.Run("namespaces do not collide", func(t *testing.T) {
		round, _ := r.Round(1)
		vault, _ := r.Vault(1)
		profile, _ := r.UserProfile(buyer)
		ticket, _ := r.TicketPosition(round, buyer, 0)
		seen := map[Address]bool{}
		for _, a := range []Address{round, vault, profile, ticket} {
			assert.False(t, seen[a], "duplicate address %s", a)
			seen[a] = true
		}
	})

	t.Run("start index is part of the ticket address", func(t *testing.T) {
		round, _ := r.Round(1)
		first, _ := r.TicketPosition(round, buyer, 0)
		second, _ := r.TicketPosition(round, buyer, 3)
		assert.NotEqual(t, first, second)
	})

	t.Run("program id scopes addresses", func(t *testing.T) {
		other := NewResolver(buyer)
		a, _ := r.Round(1)
		b, _ := other.Round(1)
		assert.NotEqual(t, a, b)
	})

	t.Run("matches manual derivation", func(t *testing.T) {
		a, bump, err := r.Resolve(NamespaceVault, U64(42))
		require.NoError(t, err)
		b, bb := r.Vault(42)
		assert.Equal(t, a, b)
		assert.Equal(t, bump, bb)
	})
}
