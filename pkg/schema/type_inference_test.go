package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferType(t *testing.T) {
	tests := []struct {
		field string
		want  ColumnType
		rule  string
	}{
		{"ChakuKaisu", Integer, "finish-count"},
		{"ChakuKaisu_0", Integer, "finish-count"},
		{"ChakuKaisu_10", Integer, "finish-count"},
		{"HonRuikei_1__ChakuKaisu_5", Integer, "finish-count"},
		{"SogoChakukaisu_2", Integer, "finish-count"},
		{"SyussoTosu", Integer, "count"},
		{"Umaban", Integer, "count"},
		{"OddsTansyoInfo_3__Umaban", Integer, "count"},
		{"head_MakeDate_Year", Integer, "calendar"},
		{"HassoTime_Minute", Integer, "calendar"},
		{"KakuteiJyuni", Integer, "position"},
		{"Syokin", Integer, "monetary"},
		{"HonSyokin", Integer, "monetary"},
		{"Honsyokin_4", Integer, "monetary"},
		{"Odds", Integer, "monetary"},
		{"PayTansyo_0__Pay", Integer, "monetary"},
		{"Kyori", Integer, "distance-time"},
		{"Time", Integer, "distance-time"},
		{"BaTaijyu", Integer, "weight"},
		{"Ninki", Integer, "rank-margin"},
		{"ZogenSa", Integer, "rank-margin"},
		{"DelKubun", Text, "flag"},
		{"HatubaiFlag_3", Text, "flag"},
		{"UmaKigoCD", Text, "flag"},
		{"JyoCD", Text, "code"},
		{"KisyuCode", Text, "code"},
		{"CCInfoAfter_TruckCd", Text, "code"},
		{"HonRuikei_0__SetYear", Integer, "set-year"},
		{"Bamei", Text, "default"},
		{"KettoNum", Text, "default"},
		{"ChokyoTime", Text, "default"},
		{"", Text, "default"},
		{"__", Text, "default"},
		{"_7", Text, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			typ, rule := ExplainType(tt.field)
			assert.Equal(t, tt.want, typ)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.want, InferType(tt.field))
		})
	}
}

func TestInferType_MonetaryBeatsFlag(t *testing.T) {
	typ, rule := ExplainType("PayFlag")
	assert.Equal(t, Integer, typ)
	assert.Equal(t, "monetary", rule)

	typ, rule = ExplainType("OddsKubun")
	assert.Equal(t, Integer, typ)
	assert.Equal(t, "monetary", rule)
}

func TestInferType_Stable(t *testing.T) {
	names := []string{"ChakuKaisu_3", "Bamei", "Odds", "TrackCD", "x__y_z_1", "日本語"}
	for _, name := range names {
		first := InferType(name)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, InferType(name), name)
		}
		assert.Contains(t, []ColumnType{Integer, Text}, first)
	}
}

func TestSplitFieldName(t *testing.T) {
	tests := []struct {
		field   string
		cleaned string
		root    string
	}{
		{"Bamei", "Bamei", "Bamei"},
		{"ChakuKaisu_10", "ChakuKaisu_10", "ChakuKaisu"},
		{"UmaChaku__ChakuKaisuBa_2__ChakuKaisu_4", "ChakuKaisu_4", "ChakuKaisu"},
		{"head_MakeDate_Year", "head_MakeDate_Year", "Year"},
		{"Jyuni_", "Jyuni_", ""},
		{"7", "7", "7"},
	}

	for _, tt := range tests {
		cleaned, root := splitFieldName(tt.field)
		assert.Equal(t, tt.cleaned, cleaned, tt.field)
		assert.Equal(t, tt.root, root, tt.field)
	}
}
