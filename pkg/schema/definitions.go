package schema

import (
	"fmt"
	"strings"
)

type definition struct {
	spec   RecordSpec
	title  string
	index  []string
	fields []FieldDef
}

// Shared leading columns. Every line starts with the header; race level
// records follow it with the race key, meeting level records with the
// meeting key.
const (
	header = `head_RecordSpec head_DataKubun head_MakeDate_Year:i head_MakeDate_Month:i head_MakeDate_Day:i`
	meetID = `id_Year:i id_MonthDay:i id_JyoCD id_Kaiji:i id_Nichiji:i`
	raceID = meetID + ` id_RaceNum:i`
)

var meetColumns = []string{"id_Year", "id_MonthDay", "id_JyoCD", "id_Kaiji", "id_Nichiji"}

func keys(names ...string) []string { return names }

func meetKey() []string { return append([]string(nil), meetColumns...) }

func raceKey(extra ...string) []string {
	return append(append(meetKey(), "id_RaceNum"), extra...)
}

// fields parses space separated column tokens. A ":i" suffix marks an
// Integer column; untagged tokens are Text.
func fields(parts ...string) []FieldDef {
	tokens := strings.Fields(strings.Join(parts, " "))
	defs := make([]FieldDef, 0, len(tokens))
	for _, tok := range tokens {
		name, tag, _ := strings.Cut(tok, ":")
		typ := Text
		if tag == "i" {
			typ = Integer
		}
		defs = append(defs, FieldDef{Name: name, Type: typ})
	}
	return defs
}

// group expands a repeated sub-structure: group("Pay", 2, "Umaban Pay:i")
// yields Pay_0__Umaban Pay_0__Pay:i Pay_1__Umaban Pay_1__Pay:i.
func group(prefix string, count int, parts ...string) string {
	inner := strings.Fields(strings.Join(parts, " "))
	out := make([]string, 0, count*len(inner))
	for i := 0; i < count; i++ {
		for _, tok := range inner {
			out = append(out, fmt.Sprintf("%s_%d__%s", prefix, i, tok))
		}
	}
	return strings.Join(out, " ")
}

// array expands a fixed-size slot list: array("HyoTotal", 2, ":i") yields
// HyoTotal_0:i HyoTotal_1:i.
func array(name string, count int, tag string) string {
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s_%d%s", name, i, tag)
	}
	return strings.Join(out, " ")
}

var definitions = []definition{
	{
		spec:   "AV",
		title:  "scratch and exclusion notice",
		index:  meetKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Month:i HappyoTime_Day:i HappyoTime_Hour:i HappyoTime_Minute:i Umaban Bamei JiyuKubun`,
		),
	},
	{
		spec:   "BN",
		title:  "owner master",
		index:  keys("BanusiCode"),
		fields: fields(
			header,
			`BanusiCode BanusiName_Co BanusiName BanusiNameKana BanusiNameEng Fukusyoku`,
			group("HonRuikei", 2, `SetYear:i HonSyokinTotal:i FukaSyokin:i`, array("ChakuKaisu", 6, ":i")),
		),
	},
	{
		spec:   "BR",
		title:  "breeder master",
		index:  keys("BreederCode"),
		fields: fields(
			header,
			`BreederCode BreederName_Co BreederName BreederNameKana BreederNameEng Address`,
			group("HonRuikei", 2, `SetYear:i HonSyokinTotal:i FukaSyokin:i`, array("ChakuKaisu", 6, ":i")),
		),
	},
	{
		spec:   "BT",
		title:  "bloodline information",
		index:  keys("HansyokuNum"),
		fields: fields(
			header,
			`HansyokuNum KeitoId KeitoName KeitoEx`,
		),
	},
	{
		spec:   "CC",
		title:  "course change",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Month:i HappyoTime_Day:i HappyoTime_Hour:i HappyoTime_Minute:i CCInfoAfter_Kyori:i CCInfoAfter_TruckCd CCInfoBefore_Kyori:i CCInfoBefore_TruckCd JiyuCd`,
		),
	},
	{
		spec:   "CH",
		title:  "trainer master",
		index:  keys("ChokyosiCode"),
		fields: fields(
			header,
			`ChokyosiCode DelKubun IssueDate_Year:i IssueDate_Month:i IssueDate_Day:i DelDate_Year:i DelDate_Month:i DelDate_Day:i BirthDate_Year:i BirthDate_Month:i BirthDate_Day:i ChokyosiName ChokyosiNameKana ChokyosiRyakusyo ChokyosiNameEng SexCD TozaiCD Syotai`,
			group("SaikinJyusyo", 3, `SaikinJyusyoid_Year:i SaikinJyusyoid_MonthDay:i SaikinJyusyoid_JyoCD SaikinJyusyoid_Kaiji:i SaikinJyusyoid_Nichiji:i SaikinJyusyoid_RaceNum:i Hondai Ryakusyo10 Ryakusyo6 Ryakusyo3 GradeCD SyussoTosu:i KettoNum Bamei`),
			group("HonZenRuikei", 3, `SetYear:i HonSyokinTotal:i FukaSyokin:i`, array("ChakuKaisu", 6, ":i")),
		),
	},
	{
		spec:   "CK",
		title:  "finishing record at entry",
		index:  raceKey("UmaChaku_KettoNum"),
		fields: fields(
			header, raceID,
			`UmaChaku_KettoNum UmaChaku_Bamei UmaChaku_RuikeiHonsyoHeiti:i UmaChaku_RuikeiHonsyoSyogai:i`,
			array("UmaChaku_ChakuSogo_ChakuKaisu", 6, ":i"),
			array("UmaChaku_ChakuChuo_ChakuKaisu", 6, ":i"),
			array("UmaChaku_Kyakusitu", 4, ""),
			`KisyuChaku_KisyuCode KisyuChaku_KisyuName ChokyoChaku_ChokyosiCode ChokyoChaku_ChokyosiName BanusiChaku_BanusiCode BanusiChaku_BanusiName_Co BanusiChaku_BanusiName BreederChaku_BreederCode BreederChaku_BreederName_Co BreederChaku_BreederName`,
		),
	},
	{
		spec:   "CS",
		title:  "course information",
		index:  keys("JyoCD", "Kyori", "TrackCD", "KaishuDate_Year", "KaishuDate_Month", "KaishuDate_Day"),
		fields: fields(
			header,
			`JyoCD Kyori:i TrackCD KaishuDate_Year:i KaishuDate_Month:i KaishuDate_Day:i CourseEx`,
		),
	},
	{
		spec:   "DM",
		title:  "time based mining forecast",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`MakeHM_Hour:i MakeHM_Minute:i`,
			group("DMInfo", 3, `Umaban DMTime:i DMGosaP:i DMGosaM:i`),
		),
	},
	{
		spec:   "H1",
		title:  "ticket sales, win to trio",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`TorokuTosu:i SyussoTosu:i FukuChakuBaraiKey`,
			array("HatubaiFlag", 7, ""),
			array("HenkanUma", 2, ""),
			array("HenkanWaku", 2, ""),
			array("HenkanDoWaku", 2, ""),
			array("HyoTotal", 7, ":i"),
		),
	},
	{
		spec:   "H6",
		title:  "ticket sales, trifecta",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`TorokuTosu:i SyussoTosu:i HatubaiFlag`,
			array("HenkanUma", 3, ""),
			array("HyoTotal", 2, ":i"),
		),
	},
	{
		spec:   "HN",
		title:  "breeding horse master",
		index:  keys("HansyokuNum"),
		fields: fields(
			header,
			`HansyokuNum reserved KettoNum DelKubun Bamei BameiKana BameiEng BirthYear:i SexCD HansyokuMochiKubun KeiroCD HansyokuFNum HansyokuMNum`,
		),
	},
	{
		spec:   "HR",
		title:  "payouts",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			group("PayTansyo", 1, `Umaban Pay:i Ninki:i`),
			group("PayFukusyo", 1, `Umaban Pay:i Ninki:i`),
			group("PayWakuren", 1, `Kumi Pay:i Ninki:i`),
			group("PayUmaren", 1, `Kumi Pay:i Ninki:i`),
			group("PayWide", 1, `Kumi Pay:i Ninki:i`),
			group("PayUmatan", 1, `Kumi Pay:i Ninki:i`),
			group("PaySanrenpuku", 1, `Kumi Pay:i Ninki:i`),
			group("PaySanrentan", 1, `Kumi Pay:i Ninki:i`),
		),
	},
	{
		spec:   "HS",
		title:  "market transaction price",
		index:  keys("KettoNum", "SaleCode", "FromDate_Year", "FromDate_Month", "FromDate_Day"),
		fields: fields(
			header,
			`KettoNum SaleCode HansyokuHanryoCD Bamei UmaKigoCD SexCD TozaiCD ChokyosiCode ChokyosiRyakusyo Syotai BreederCode BreederName SanchiName BanusiCode BanusiName RuikeiHonsyoHeiti:i RuikeiHonsyoSyogai:i RuikeiFukaHeichi:i RuikeiFukaSyogai:i RuikeiSyutokuHeichi:i RuikeiSyutokuSyogai:i`,
			array("SogoChakukaisu", 6, ":i"),
			array("ChuoChakukaisu", 2, ":i"),
			`FromDate_Year:i FromDate_Month:i FromDate_Day:i SaleHostName SaleHostCode SaleName`,
		),
	},
	{
		spec:   "HY",
		title:  "horse name meaning",
		index:  keys("KettoNum"),
		fields: fields(
			header,
			`KettoNum DelKubun Bamei BameiKana BameiEng ZaikyuFlag Reserved Origin`,
		),
	},
	{
		spec:   "JC",
		title:  "jockey change",
		index:  meetKey(),
		fields: fields(
			header, meetID,
			`HenkoID WeekCD YoubiCD JyusyoKaiji:i TsukigoHonsyoHeichi:i TsukigoHonsyoSyogai:i TsukigoFukaHeichi:i TsukigoFukaSyogai:i reserved`,
		),
	},
	{
		spec:   "JG",
		title:  "entry exclusion",
		index:  raceKey("KettoNum", "ShutsubaTohyoJun"),
		fields: fields(
			header, raceID,
			`KettoNum Bamei ShutsubaTohyoJun:i GradeCD JyokenCD1 JyokenCD2 JyokenCD3 JyokenCD4 JyokenCD5 ChakusaTotalCD Kyakusitu1 Kyakusitu2 Kyakusitu3 Kyakusitu4`,
		),
	},
	{
		spec:   "KS",
		title:  "jockey master",
		index:  keys("KisyuCode"),
		fields: fields(
			header,
			`KisyuCode DelKubun IssueDate_Year:i IssueDate_Month:i IssueDate_Day:i DelDate_Year:i DelDate_Month:i DelDate_Day:i BirthDate_Year:i BirthDate_Month:i BirthDate_Day:i KisyuName reserved KisyuNameKana KisyuRyakusyo KisyuNameEng SexCD SikakuCD MinaraiCD TozaiCD Syotai MiddleYear:i MiddleKisyuCD HatuKiJyo_Year:i HatuKiJyo_Month:i HatuKiJyo_Day:i HatuKiJyoJyusyo_Year:i HatuKiJyoJyusyo_Month:i HatuKiJyoJyusyo_Day:i HatuKiJyoFP HatuKiJyoFPJyusyo GenYearKisyu:i GenSaijiKisyu:i reserved2`,
		),
	},
	{
		spec:   "O1",
		title:  "odds, win place bracket",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i TansyoFlag FukusyoFlag WakurenFlag FukuChakuBaraiKey`,
			group("OddsTansyoInfo", 2, `Umaban Odds:i Ninki:i`),
			group("OddsFukusyoInfo", 2, `Umaban OddsLow:i OddsHigh:i Ninki:i`),
			group("OddsWakurenInfo", 1, `Kumi Odds:i Ninki:i`),
			`TotalHyosuTansyo:i TotalHyosuFukusyo:i TotalHyosuWakuren:i`,
		),
	},
	{
		spec:   "O2",
		title:  "odds, quinella",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i UmarenFlag`,
			group("OddsUmarenInfo", 3, `Kumi Odds:i Ninki:i`),
			`TotalHyosuUmaren:i`,
		),
	},
	{
		spec:   "O3",
		title:  "odds, wide",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i WideFlag`,
			group("OddsWideInfo", 3, `Kumi OddsLow:i OddsHigh:i Ninki:i`),
			`TotalHyosuWide:i`,
		),
	},
	{
		spec:   "O4",
		title:  "odds, exacta",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i UmatanFlag`,
			group("OddsUmatanInfo", 3, `Kumi Odds:i Ninki:i`),
			`TotalHyosuUmatan:i`,
		),
	},
	{
		spec:   "O5",
		title:  "odds, trio",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i SanrenpukuFlag`,
			group("OddsSanrenInfo", 3, `Kumi Odds:i Ninki:i`),
			`TotalHyosuSanrenpuku:i`,
		),
	},
	{
		spec:   "O6",
		title:  "odds, trifecta",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`HappyoTime_Hour:i HappyoTime_Minute:i TorokuTosu:i SyussoTosu:i SanrentanFlag`,
			group("OddsSanrentanInfo", 3, `Kumi Odds:i Ninki:i`),
			`TotalHyosuSanrentan:i`,
		),
	},
	{
		spec:   "RA",
		title:  "race details",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`RaceInfo_YoubiCD RaceInfo_TokuNum RaceInfo_Hondai RaceInfo_Fukudai RaceInfo_Kakko RaceInfo_HondaiEng RaceInfo_FukudaiEng RaceInfo_KakkoEng RaceInfo_Ryakusyo10 RaceInfo_Ryakusyo6 RaceInfo_Ryakusyo3 RaceInfo_Kubun RaceInfo_Nkai GradeCD GradeCDBefore JyokenInfo_SyubetuCD JyokenInfo_KigoCD JyokenInfo_JyuryoCD`,
			array("JyokenInfo_JyokenCD", 5, ""),
			`JyokenInfo_Kyori:i JyokenInfo_TrackCD CourseKubunCD`,
			array("Honsyokin", 5, ":i"),
			`HonsyokinBefore_0:i`,
			array("Fukasyokin", 3, ":i"),
			`FukasyokinBefore_0:i HassoTime_Hour:i HassoTime_Minute:i HassoTimeBefore_Hour:i HassoTimeBefore_Minute:i TorokuTosu:i SyussoTosu:i NyusenTosu:i`,
		),
	},
	{
		spec:   "RC",
		title:  "record master",
		index:  raceKey("TokuNum", "SyubetuCD", "Kyori", "TrackCD"),
		fields: fields(
			header, raceID,
			`TokuNum SyubetuCD Kyori:i TrackCD RaceComment HaronTimeL4:i HaronTimeL3:i reserved`,
		),
	},
	{
		spec:   "SE",
		title:  "race result per horse",
		index:  raceKey("Umaban", "KettoNum"),
		fields: fields(
			header, raceID,
			`Wakuban:i Umaban:i KettoNum Bamei UmaKigoCD SexCD Barei:i TozaiCD ChokyosiCode ChokyosiRyakusyo BanusiCode BanusiName Fukusyoku reserved1 Futan:i FutanBefore:i Blinker reserved2 KisyuCode KisyuCodeBefore KisyuRyakusyo KisyuRyakusyoBefore MinaraiCD MinaraiCDBefore BaTaijyu:i ZogenFugo ZogenSa:i IJyoCD NyusenJyuni:i KakuteiJyuni:i DochakuKubun DochakuTosu:i Time:i ChakusaCD ChakusaCDP ChakusaCDPP Jyuni1c:i Jyuni2c:i Jyuni3c:i Jyuni4c:i Odds:i Ninki:i Honsyokin:i Fukasyokin:i reserved3 reserved4 HaronTimeL4:i HaronTimeL3:i KettoNum1 KettoNum2 KettoNum3 TimeDiff:i RecordUpKubun`,
		),
	},
	{
		spec:   "SK",
		title:  "produce master",
		index:  keys("KettoNum"),
		fields: fields(
			header,
			`KettoNum DelKubun JGDate_Year:i JGDate_Month:i JGDate_Day:i BirthDate_Year:i BirthDate_Month:i BirthDate_Day:i Bamei BameiKana BameiEng ZaikyuFlag Reserved UmaKigoCD SexCD HinsyuCD KeiroCD`,
			group("Ketto3InfoKei", 1, `HansyokuNum Bamei`),
			group("Ketto3InfoBoba", 1, `HansyokuNum Bamei`),
			`TozaiCD ChokyosiCode ChokyosiRyakusyo BreederCode BreederName SanchiName BanusiCode BanusiName RuikeiHonsyoHeiti:i RuikeiHonsyoSyogai:i RuikeiFukaHeichi:i RuikeiFukaSyogai:i RuikeiSyutokuHeichi:i RuikeiSyutokuSyogai:i`,
			array("SogoChakukaisu", 6, ":i"),
			array("ChuoChakukaisu", 2, ":i"),
		),
	},
	{
		spec:   "TC",
		title:  "post time change",
		index:  meetKey(),
		fields: fields(
			header, meetID,
			group("TCInfo", 3, `Num:i KettoNum Bamei UmaKigoCD SexCD TozaiCD ChokyosiCode ChokyosiRyakusyo Futan:i Koryu reserved`),
		),
	},
	{
		spec:   "TK",
		title:  "special registration",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			group("TKInfo", 2, `Num:i KettoNum Bamei UmaKigoCD SexCD TozaiCD ChokyosiCode ChokyosiRyakusyo Futan:i Koryu BanusiName Honsyokin:i Prize:i Jyoken Syokin:i`),
		),
	},
	{
		spec:   "TM",
		title:  "match based mining forecast",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			`MakeHM_Hour:i MakeHM_Minute:i`,
			group("TMInfo", 6, `Umaban TMScore:i`),
		),
	},
	{
		spec:   "UM",
		title:  "racehorse master",
		index:  keys("KettoNum"),
		fields: fields(
			header,
			`KettoNum DelKubun RegDate_Year:i RegDate_Month:i RegDate_Day:i DelDate_Year:i DelDate_Month:i DelDate_Day:i BirthDate_Year:i BirthDate_Month:i BirthDate_Day:i Bamei BameiKana BameiEng UmaKigoCD SexCD HinsyuCD KeiroCD`,
			group("Ketto3Info", 7, `HansyokuNum Bamei`),
			`TozaiCD ChokyosiCode ChokyosiRyakusyo Syotai BreederCode BreederName SanchiName BanusiCode BanusiName RuikeiHonsyoHeiti:i RuikeiHonsyoSyogai:i RuikeiFukaHeichi:i RuikeiFukaSyogai:i RuikeiSyutokuHeichi:i RuikeiSyutokuSyogai:i`,
			array("SogoChakukaisu", 6, ":i"),
		),
	},
	{
		spec:   "WC",
		title:  "woodchip training",
		index:  keys("TresenKubun", "ChokyoDate_Year", "ChokyoDate_Month", "ChokyoDate_Day", "ChokyoTime", "KettoNum"),
		fields: fields(
			header,
			`TresenKubun ChokyoDate_Year:i ChokyoDate_Month:i ChokyoDate_Day:i ChokyoTime KettoNum HaronTime6:i LapTime6:i HaronTime5:i LapTime5:i HaronTime4:i LapTime4:i HaronTime3:i LapTime3:i HaronTime2:i LapTime2:i LapTime1:i`,
		),
	},
	{
		spec:   "WE",
		title:  "weather and going",
		index:  meetKey(),
		fields: fields(
			header, meetID,
			`HenkoID YoubiCD`,
			group("TenkoBaba", 3, `HappyoTime_Hour:i HappyoTime_Minute:i TenkoCD SibaBabaCD DirtBabaCD`),
		),
	},
	{
		spec:   "WF",
		title:  "WIN5",
		index:  keys("KaisaiDate_Year", "KaisaiDate_Month", "KaisaiDate_Day"),
		fields: fields(
			header,
			`KaisaiDate_Year:i KaisaiDate_Month:i KaisaiDate_Day:i reserved`,
			group("WFRaceInfo", 3, `JyoCD Kaiji:i Nichiji:i RaceNum:i YoubiCD WinUmaban reserved`),
			`PayoutInfo_Pay:i PayoutInfo_Tekichuhyo:i PayoutInfo_reserved SaleInfo_HatubaiFlag SaleInfo_Syussoumei SaleInfo_Henkanumaban SaleInfo_reserved SaleInfo_Carryhyosu:i SaleInfo_Totalhyosu:i SaleInfo_reserved2`,
		),
	},
	{
		spec:   "WH",
		title:  "horse weight",
		index:  raceKey(),
		fields: fields(
			header, raceID,
			group("WHInfo", 3, `RaceNum:i YoubiCD WinUmaban reserved`),
			`Pay:i TekichuHyo:i reserved`,
		),
	},
	{
		spec:   "YS",
		title:  "race schedule",
		index:  meetKey(),
		fields: fields(
			header, meetID,
			`MidashiKaisaiDate_Year:i MidashiKaisaiDate_Month:i MidashiKaisaiDate_Day:i MidashiJyoCD MidashiJyoName MidashiKaiji:i MidashiNichiji:i YoubiCD HenkoID`,
			group("YSInfo", 1, `RaceNum:i TokuNum Hondai Ryakusyo10 Ryakusyo6 Ryakusyo3 Nkai GradeCD GradeCDBefore SyubetuCD KigoCD JyuryoCD`, array("JyokenCD", 5, ""), `Kyori:i KyoriBefore:i TrackCD TrackCDBefore CourseKubunCD CourseKubunCDBefore HassoTime_Hour:i HassoTime_Minute:i HassoTimeBefore_Hour:i HassoTimeBefore_Minute:i TorokuTosu:i SyussoTosu:i SyussoTosuBefore:i TokuninKisya reserved`),
			`YSInfo_1__RaceNum:i YSInfo_1__TokuNum YSInfo_1__Hondai YSInfo_1__GradeCD YSInfo_1__SyubetuCD YSInfo_1__Kyori:i YSInfo_1__TrackCD YSInfo_1__HassoTime_Hour:i YSInfo_1__HassoTime_Minute:i YSInfo_1__TorokuTosu:i YSInfo_1__SyussoTosu:i`,
		),
	},
}
