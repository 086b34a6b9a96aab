package builder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PyuraMazo/galgame-box/pkg/animetrace"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/fetch"
	"github.com/PyuraMazo/galgame-box/pkg/steam"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

func newTestBuilder(options ...string) *Builder {
	return New(fetch.NewImageFetcher(resty.New()), options)
}

func TestVNTextOrderAndOmission(t *testing.T) {
	vn := vndb.VN{
		ID:     "v17",
		Rating: 8.5,
		Titles: []vndb.Title{
			{Lang: "ja", Title: "素晴らしき日々", Official: true},
			{Lang: "zh-Hans", Title: "美好的每一天", Official: false},
			{Lang: "xx", Title: "ignored"},
		},
		Developers: []vndb.Developer{{ID: "p18", Name: "KeroQ"}},
		Released:   "2010-03-26",
	}

	text := vnText(vn)
	lines := strings.Split(text, br)
	require.Len(t, lines, 6)
	assert.Equal(t, "VNDB ID：v17", lines[0])
	assert.Equal(t, "日文标题（官方）：素晴らしき日々", lines[1])
	assert.Equal(t, "简中标题（非官方）：美好的每一天", lines[2])
	assert.Equal(t, "贝叶斯评分：8.5", lines[3])
	assert.Equal(t, "制作者（VNDB ID）：KeroQ（p18）", lines[4])
	assert.Equal(t, "发布日期：2010-03-26", lines[5])

	// unlisted languages and absent fields never render
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "平均分")
	assert.NotContains(t, text, "游玩时间")
}

func TestBuildVNsTitleCountsResults(t *testing.T) {
	b := newTestBuilder()
	cmd := &command.Command{Kind: command.KindVN, Value: "clannad"}

	payload := b.BuildVNs(cmd, []vndb.VN{{ID: "v4"}, {ID: "v5"}})
	assert.Contains(t, payload.Title, "搜索指令「vn」")
	assert.Contains(t, payload.Title, "搜索词「clannad」")
	assert.Contains(t, payload.Title, "搜索结果「2条」")
	assert.Len(t, payload.Items, 2)
}

func TestCharacterTextOptionGating(t *testing.T) {
	ch := vndb.Character{
		ID:        "c100",
		Name:      "Yuki",
		Original:  "由岐",
		BloodType: "o",
		Height:    160,
		Sex:       []string{"f", "f"},
		Bust:      88,
		Waist:     58,
		Hips:      86,
		Cup:       "d",
		Birthday:  []int{7, 20},
	}

	gated := newTestBuilder("a", "c").characterText(ch)
	assert.Contains(t, gated, "血型：O")
	assert.Contains(t, gated, "性别：女性")
	assert.Contains(t, gated, "生日：7月20日")
	assert.NotContains(t, gated, "身高")
	assert.NotContains(t, gated, "三围")
	assert.NotContains(t, gated, "罩杯")

	full := newTestBuilder("a", "b", "c", "d", "e", "f").characterText(ch)
	assert.Contains(t, full, "身高/体重（cm/kg）：160/??")
	assert.Contains(t, full, "真实性别：女性")
	assert.Contains(t, full, "三围：88-58-86")
	assert.Contains(t, full, "罩杯：D")
}

func TestNewAcceptsAnnotatedOptions(t *testing.T) {
	b := newTestBuilder("a-血型", "f-罩杯")
	assert.True(t, b.characterOptions["a"])
	assert.True(t, b.characterOptions["f"])
	assert.False(t, b.characterOptions["b"])
}

func TestBuildProducersAlignsTitles(t *testing.T) {
	b := newTestBuilder()
	cmd := &command.Command{Kind: command.KindProducer, Value: "key"}

	pros := []vndb.Producer{
		{ID: "p24", Name: "Key", Lang: "ja", Type: "co"},
		{ID: "p99", Name: "Other"},
	}
	vns := [][]vndb.VN{
		{{ID: "v4", Title: "CLANNAD", Rating: 8.9}},
		nil,
	}

	payload := b.BuildProducers(cmd, pros, vns)
	require.Len(t, payload.Producers, 2)
	assert.Contains(t, payload.Producers[0].ColumnInfo, "VNDB ID：p24")
	assert.Contains(t, payload.Producers[0].ColumnInfo, "类型：公司")
	require.Len(t, payload.Producers[0].VNs, 1)
	assert.Contains(t, payload.Producers[0].VNs[0].Text, "CLANNAD")
	assert.Empty(t, payload.Producers[1].VNs)
}

func TestBuildDetailsMergesPage(t *testing.T) {
	b := newTestBuilder()
	cmd := &command.Command{Kind: command.KindRandom}

	game := touchgal.Game{ID: 7, Name: "fallback", Banner: "https://img/banner.webp"}
	details := &touchgal.Details{
		VNDBID:      "v17",
		Title:       "素晴らしき日々",
		Description: "第一段\n第二段",
		Images:      []string{"https://img/1.webp"},
	}

	payload := b.BuildDetails(cmd, game, details)
	require.NotNil(t, payload.Info)
	assert.Equal(t, "素晴らしき日々", payload.Info.SubTitle)
	assert.Equal(t, "第一段<br>第二段", payload.Info.Description)
	assert.Contains(t, payload.Info.Text, "VNDB ID：v17")
	assert.Equal(t, "https://img/banner.webp", payload.Info.MainImage)
}

func TestBuildDetailsWithoutPage(t *testing.T) {
	b := newTestBuilder()
	payload := b.BuildDetails(&command.Command{Kind: command.KindRecommend}, touchgal.Game{Name: "some game"}, nil)
	require.NotNil(t, payload.Info)
	assert.Equal(t, "some game", payload.Info.SubTitle)
	assert.Empty(t, payload.Info.Description)
}

func TestBuildSelectNodesNumbersCandidates(t *testing.T) {
	b := newTestBuilder()
	games := []touchgal.Game{{Name: "first"}, {Name: "second"}}

	nodes := b.BuildSelectNodes(context.Background(), games)
	require.Len(t, nodes, 2)
	assert.Contains(t, nodes[0].Text, "【1】first")
	assert.Contains(t, nodes[1].Text, "【2】second")
	// empty banner degrades to the placeholder, never an empty preview
	assert.NotEmpty(t, nodes[0].ImageB64)
}

func TestBuildResourceNodesDropsEmptyFields(t *testing.T) {
	b := newTestBuilder()
	nodes := b.BuildResourceNodes([]touchgal.Resource{{
		Name:    "正式版",
		Content: "https://pan.example/abc",
		Code:    "x9k2",
	}})
	require.Len(t, nodes, 1)
	assert.Contains(t, nodes[0].Text, "标题：正式版")
	assert.Contains(t, nodes[0].Text, "提取码：x9k2")
	assert.NotContains(t, nodes[0].Text, "解压码")
	assert.NotContains(t, nodes[0].Text, "备注")
}

func TestBuildTraceKeepsPlaceholderForMissingRecord(t *testing.T) {
	b := newTestBuilder()
	resp := &animetrace.Response{Data: []animetrace.Detection{{
		Characters: []animetrace.Candidate{
			{Work: "素晴らしき日々", Character: "由岐"},
			{Work: "unknown", Character: "nobody"},
		},
	}}}
	refs := [][][]vndb.Character{{
		{{ID: "c100", Name: "Yuki", Original: "由岐"}},
		{},
	}}

	payload := b.BuildTrace(&command.Command{Kind: command.KindFind}, resp, refs, animetrace.ModelGame)
	require.Len(t, payload.Items, 2)
	assert.Equal(t, "由岐", payload.Items[0].SubTitle)
	assert.Contains(t, payload.Items[0].Text, "VNDB ID：c100")
	assert.Equal(t, "nobody", payload.Items[1].SubTitle)
	assert.Contains(t, payload.Items[1].Text, "VNDB 无相关记录")
	assert.Contains(t, payload.Title, "检测区域「1处」")
}

func TestBuildReport(t *testing.T) {
	b := newTestBuilder()
	rec := &creds.Record{
		OwnerID:  "42",
		LastSync: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		Games: map[int]creds.GameRecord{
			4000: {Name: "Garry's Mod", PlaytimeMinutes: 90, Achievement: "0.43"},
		},
	}

	payload := b.BuildReport(rec, &steam.Profile{PersonaName: "player"})
	assert.Contains(t, payload.Title, "「player」的游戏库报告")
	assert.Contains(t, payload.Title, "共「1款」游戏")
	require.Len(t, payload.Items, 1)
	assert.Contains(t, payload.Items[0].Text, "游玩时长：1.5小时")
	assert.Contains(t, payload.Items[0].Text, "成就完成度：0.43")
	assert.Contains(t, payload.Items[0].Image, "/4000/")
}

func TestBuildReportOrdersByPlaytime(t *testing.T) {
	b := newTestBuilder()
	rec := &creds.Record{
		Games: map[int]creds.GameRecord{
			1: {Name: "short", PlaytimeMinutes: 10},
			2: {Name: "long", PlaytimeMinutes: 900},
			3: {Name: "mid", PlaytimeMinutes: 100},
		},
	}

	payload := b.BuildReport(rec, &steam.Profile{PersonaName: "player"})
	require.Len(t, payload.Items, 3)
	assert.Equal(t, "long", payload.Items[0].SubTitle)
	assert.Equal(t, "mid", payload.Items[1].SubTitle)
	assert.Equal(t, "short", payload.Items[2].SubTitle)
}
