package codec

import (
	"math/big"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/ir"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

func mustU256(t *testing.T, hex string) schema.Primitive {
	t.Helper()
	p, err := schema.ParsePrimitive(schema.KindU256, hex)
	require.NoError(t, err)
	return p
}

func TestEncodePrimitiveNarrowIsNumber(t *testing.T) {
	tests := []struct {
		p    schema.Primitive
		want uint64
	}{
		{schema.NewU8(255), 255},
		{schema.NewU16(65535), 65535},
		{schema.NewU32(5), 5},
		{schema.NewU64(1 << 53), 1 << 53},
		{schema.NewU64(18446744073709551615), 18446744073709551615},
		{schema.NewUSize(42), 42},
	}
	for _, tt := range tests {
		t.Run(tt.p.Kind.String(), func(t *testing.T) {
			assert.Equal(t, ir.IRUint(tt.want), EncodePrimitive(tt.p))
		})
	}
}

func TestEncodePrimitiveWideIsLowercaseHex(t *testing.T) {
	u128, err := schema.NewU128(new(big.Int).Lsh(big.NewInt(1), 100))
	require.NoError(t, err)

	prims := []schema.Primitive{
		u128,
		mustU256(t, "0xDEADBEEF00000000000000000000000000000000000000000000000000000000"),
		schema.NewFelt252(felt.MustParse("0xABCDEF")),
		schema.NewClassHash(felt.MustParse("12345")),
		schema.NewContractAddress(felt.Zero),
	}
	for _, p := range prims {
		t.Run(p.Kind.String(), func(t *testing.T) {
			v, ok := EncodePrimitive(p).(ir.IRString)
			require.True(t, ok, "expected string, got %T", EncodePrimitive(p))
			s := string(v)
			assert.True(t, strings.HasPrefix(s, "0x"), s)
			assert.Equal(t, strings.ToLower(s), s)
		})
	}

	assert.Equal(t, ir.IRString("0x0"), EncodePrimitive(schema.NewContractAddress(felt.Zero)))
	assert.Equal(t, ir.IRString("0xabcdef"), EncodePrimitive(schema.NewFelt252(felt.MustParse("0xABCDEF"))))
}

func TestEncodePrimitiveBool(t *testing.T) {
	assert.Equal(t, ir.IRBool(true), EncodePrimitive(schema.NewBool(true)))
	assert.Equal(t, ir.IRBool(false), EncodePrimitive(schema.NewBool(false)))
}

func TestEncodePrimitiveUnsetIsNull(t *testing.T) {
	for k := schema.KindBool; k <= schema.KindContractAddress; k++ {
		t.Run(k.String(), func(t *testing.T) {
			assert.Equal(t, ir.IRNull{}, EncodePrimitive(schema.Unset(k)))

			obj, err := EncodeTy(schema.Unset(k))
			require.NoError(t, err)
			data, err := Marshal(obj)
			require.NoError(t, err)
			assert.Equal(t, `{"type":"`+k.String()+`","value":null}`, string(data))
		})
	}
}

func TestEncodeEnum(t *testing.T) {
	e := &schema.Enum{Name: "Direction", Option: schema.OptionIndex(2), Options: []schema.EnumOption{
		{Name: "None"}, {Name: "Left"}, {Name: "Right"},
	}}

	obj, err := EncodeTy(e)
	require.NoError(t, err)
	data, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"enum","value":2}`, string(data))

	e.Option = nil
	obj, err = EncodeTy(e)
	require.NoError(t, err)
	data, err = Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"enum","value":null}`, string(data))
}

func TestEncodeTupleIsUnsupported(t *testing.T) {
	_, err := EncodeTy(&schema.Tuple{Elems: []schema.Ty{schema.NewU8(1)}})
	require.Error(t, err)
	assert.True(t, IsUnsupportedShape(err))

	nested := &schema.Struct{Name: "Outer", Children: []schema.Member{
		{Name: "inner", Ty: &schema.Struct{Name: "Inner", Children: []schema.Member{
			{Name: "pair", Ty: &schema.Tuple{}},
		}}},
	}}
	_, err = EncodeTy(nested)
	var ue *UnsupportedShapeError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "tuple", ue.Shape)
	assert.Equal(t, "inner.pair", ue.Path)
}

func TestEncodeStructPreservesOrder(t *testing.T) {
	s := &schema.Struct{Name: "Stats", Children: []schema.Member{
		{Name: "zeta", Ty: schema.NewU8(1)},
		{Name: "alpha", Ty: schema.NewU8(2)},
		{Name: "mid", Ty: schema.NewU8(3)},
	}}

	obj, err := EncodeTy(s)
	require.NoError(t, err)

	tag, _ := obj.Get("type")
	assert.Equal(t, ir.IRString("struct"), tag)

	v, _ := obj.Get("value")
	fields := v.(*ir.IRObject)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, fields.Keys())

	for i, m := range s.Children {
		want, err := EncodeTy(m.Ty)
		require.NoError(t, err)
		got, ok := fields.Get(m.Name)
		require.True(t, ok)
		assert.Equal(t, want, got, "child %d", i)
	}
}

func TestEncodeStructDecodesByFieldName(t *testing.T) {
	s := &schema.Struct{Name: "Vec2", Children: []schema.Member{
		{Name: "y", Ty: schema.NewU32(2)},
		{Name: "x", Ty: schema.NewU32(1)},
	}}

	obj, err := EncodeTy(s)
	require.NoError(t, err)
	data, err := Marshal(obj)
	require.NoError(t, err)

	decoded, err := ir.UnmarshalIRValue(data)
	require.NoError(t, err)
	v, _ := decoded.(*ir.IRObject).Get("value")
	fields := v.(*ir.IRObject)
	assert.Equal(t, []string{"y", "x"}, fields.Keys())

	x, _ := fields.Get("x")
	assert.Equal(t, ir.NewIRObject(ir.O("type", ir.IRString("u32")), ir.O("value", ir.IRUint(1))), x)
}

func TestEncodeIsIdempotent(t *testing.T) {
	ty := positionModel(5).AsStruct()

	a, err := EncodeTy(ty)
	require.NoError(t, err)
	b, err := EncodeTy(ty)
	require.NoError(t, err)

	da, err := Marshal(a)
	require.NoError(t, err)
	db, err := Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func positionModel(x uint32) schema.Model {
	return schema.Model{Name: "Position", Members: []schema.Member{
		{Name: "x", Ty: schema.NewU32(x)},
	}}
}

func TestEncodeEntitiesPositionScenario(t *testing.T) {
	obj, err := EncodeEntities([]schema.Entity{{
		HashedKeys: felt.FromUint64(1),
		Models:     []schema.Model{positionModel(5)},
	}})
	require.NoError(t, err)

	data, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"0x1":{"Position":{"x":{"type":"u32","value":5}}}}`, string(data))
}

func TestEncodeEntitiesLastWriteWins(t *testing.T) {
	obj, err := EncodeEntities([]schema.Entity{
		{HashedKeys: felt.FromUint64(1), Models: []schema.Model{positionModel(1)}},
		{HashedKeys: felt.FromUint64(2), Models: []schema.Model{positionModel(2)}},
		{HashedKeys: felt.FromUint64(1), Models: []schema.Model{positionModel(3)}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"0x1", "0x2"}, obj.Keys())
	data, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t,
		`{"0x1":{"Position":{"x":{"type":"u32","value":3}}},"0x2":{"Position":{"x":{"type":"u32","value":2}}}}`,
		string(data))
}

func TestEncodeEntitiesEmpty(t *testing.T) {
	obj, err := EncodeEntities(nil)
	require.NoError(t, err)
	data, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestEncodeEntitiesReportsTuple(t *testing.T) {
	_, err := EncodeEntities([]schema.Entity{{
		HashedKeys: felt.FromUint64(7),
		Models: []schema.Model{{Name: "Pair", Members: []schema.Member{
			{Name: "p", Ty: &schema.Tuple{}},
		}}},
	}})
	require.Error(t, err)
	assert.True(t, IsUnsupportedShape(err))
	assert.Contains(t, err.Error(), "0x7")
	assert.Contains(t, err.Error(), "Pair.p")
}

func TestEncodeGolden(t *testing.T) {
	player := felt.MustParse("0x3ee9e18edc71a6df30ac3aca2e0b02a198fbce19b7480a63a0d71cbd76652e0")

	tests := []struct {
		name     string
		entities []schema.Entity
	}{
		{
			name: "position_entity",
			entities: []schema.Entity{{
				HashedKeys: felt.FromUint64(1),
				Models:     []schema.Model{positionModel(5)},
			}},
		},
		{
			name: "player_world",
			entities: []schema.Entity{{
				HashedKeys: felt.MustParse("0x28cd7ee02d7f6ec9810e75b930e8e607793b302445abbdee0ac88143f18da20"),
				Models: []schema.Model{
					{Name: "Moves", Members: []schema.Member{
						{Name: "player", Ty: schema.NewContractAddress(player), Key: true},
						{Name: "remaining", Ty: schema.NewU8(99)},
						{Name: "last_direction", Ty: &schema.Enum{Name: "Direction", Option: schema.OptionIndex(1), Options: []schema.EnumOption{
							{Name: "None"}, {Name: "Left"}, {Name: "Right"}, {Name: "Up"}, {Name: "Down"},
						}}},
					}},
					{Name: "Position", Members: []schema.Member{
						{Name: "player", Ty: schema.NewContractAddress(player), Key: true},
						{Name: "vec", Ty: &schema.Struct{Name: "Vec2", Children: []schema.Member{
							{Name: "x", Ty: schema.NewU32(10)},
							{Name: "y", Ty: schema.Unset(schema.KindU32)},
						}}},
						{Name: "balance", Ty: mustU256(t, "0xFFFF0000")},
						{Name: "alive", Ty: schema.NewBool(true)},
					}},
				},
			}},
		},
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := EncodeEntities(tt.entities)
			require.NoError(t, err)
			data, err := Marshal(obj)
			require.NoError(t, err)
			g.Assert(t, tt.name, data)
		})
	}
}
