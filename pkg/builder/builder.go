// Package builder shapes raw API responses into the template-ready payload:
// a title plus a fixed, ordered list of optional labeled fields per item,
// joined with the <br> line-break marker. Absent fields are omitted, never
// rendered empty. Image references are passed through for the renderer to
// resolve; only chat preview nodes embed bytes.
package builder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PyuraMazo/galgame-box/pkg/animetrace"
	"github.com/PyuraMazo/galgame-box/pkg/bus"
	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/fetch"
	"github.com/PyuraMazo/galgame-box/pkg/steam"
	"github.com/PyuraMazo/galgame-box/pkg/touchgal"
	"github.com/PyuraMazo/galgame-box/pkg/vndb"
)

const br = "<br>"

const previewMaxSide = 320

// Item is one rendered card.
type Item struct {
	SubTitle string `json:"sub_title"`
	Image    string `json:"image"`
	Text     string `json:"text"`
}

// ProducerBlock is one producer column plus its top-rated titles.
type ProducerBlock struct {
	ColumnInfo string `json:"column_info"`
	VNs        []Item `json:"vns"`
}

// Info is the single-work detail layout (random pick, recommendation).
type Info struct {
	SubTitle    string   `json:"sub_title"`
	MainImage   string   `json:"main_image"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
	Text        string   `json:"text"`
}

// Payload is what the renderer receives.
type Payload struct {
	Title     string          `json:"title"`
	Items     []Item          `json:"items,omitempty"`
	Producers []ProducerBlock `json:"producers,omitempty"`
	Info      *Info           `json:"info,omitempty"`
}

var langNames = map[string]string{
	"ja":      "日文",
	"en":      "英文",
	"zh-Hans": "简中",
	"zh-Hant": "繁中",
	"zh":      "中文",
}

var producerTypes = map[string]string{
	"co": "公司",
	"in": "个人",
	"ng": "业余团体",
}

var genderNames = map[string]string{
	"m": "男性",
	"f": "女性",
	"b": "双性",
	"n": "无性",
}

type Builder struct {
	images *fetch.ImageFetcher
	// characterOptions gates optional character fields, original plugin
	// convention a-f.
	characterOptions map[string]bool
}

func New(images *fetch.ImageFetcher, characterOptions []string) *Builder {
	opts := make(map[string]bool, len(characterOptions))
	for _, o := range characterOptions {
		// options may arrive as "a-血型"; only the leading letter counts
		opts[strings.SplitN(o, "-", 2)[0]] = true
	}
	return &Builder{images: images, characterOptions: opts}
}

// joinFields drops empty entries and joins the rest in their fixed order.
func joinFields(fields ...string) string {
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, br)
}

func buildTitle(cmd *command.Command, count int) string {
	parts := []string{fmt.Sprintf("搜索指令「%s」", cmd.Kind)}
	if cmd.Value != "" {
		parts = append(parts, fmt.Sprintf("搜索词「%s」", cmd.Value))
	}
	if cmd.Kind != command.KindRandom && cmd.Kind != command.KindRecommend && count > 0 {
		parts = append(parts, fmt.Sprintf("搜索结果「%d条」", count))
	}
	return strings.Join(parts, br)
}

func imageURL(img *vndb.Image) string {
	if img == nil {
		return ""
	}
	return img.URL
}

func langList(codes []string) string {
	var names []string
	for _, c := range codes {
		if n, ok := langNames[c]; ok {
			names = append(names, n)
		}
	}
	return strings.Join(names, "、")
}

// BuildVNs shapes visual-novel lookup results.
func (b *Builder) BuildVNs(cmd *command.Command, vns []vndb.VN) *Payload {
	items := make([]Item, 0, len(vns))
	for _, vn := range vns {
		items = append(items, Item{Image: imageURL(vn.Image), Text: vnText(vn)})
	}
	return &Payload{Title: buildTitle(cmd, len(vns)), Items: items}
}

func vnText(vn vndb.VN) string {
	var titles []string
	for _, t := range vn.Titles {
		name, ok := langNames[t.Lang]
		if !ok {
			continue
		}
		official := "官方"
		if !t.Official {
			official = "非官方"
		}
		titles = append(titles, fmt.Sprintf("%s标题（%s）：%s", name, official, t.Title))
	}

	var devs []string
	for _, d := range vn.Developers {
		name := d.Original
		if name == "" {
			name = d.Name
		}
		devs = append(devs, fmt.Sprintf("%s（%s）", name, d.ID))
	}

	return joinFields(
		"VNDB ID："+vn.ID,
		strings.Join(titles, br),
		optional("别称：", strings.Join(vn.Aliases, "、")),
		optionalF(vn.Rating, "贝叶斯评分：%v"),
		optionalF(vn.Average, "平均分：%v"),
		optionalN(vn.LengthMinutes, "游玩时间：%d分钟"),
		optional("制作者（VNDB ID）：", strings.Join(devs, "、")),
		optional("发布日期：", vn.Released),
		optional("支持平台：", strings.Join(vn.Platforms, "、")),
	)
}

func optional(label, value string) string {
	if value == "" {
		return ""
	}
	return label + value
}

func optionalF(v float64, format string) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf(format, v)
}

func optionalN(v int, format string) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf(format, v)
}

// BuildCharacters shapes character lookup results. The optional physical
// fields are gated by the configured character options.
func (b *Builder) BuildCharacters(cmd *command.Command, chars []vndb.Character) *Payload {
	items := make([]Item, 0, len(chars))
	for _, ch := range chars {
		items = append(items, Item{
			SubTitle: characterName(ch),
			Image:    imageURL(ch.Image),
			Text:     b.characterText(ch),
		})
	}
	return &Payload{Title: buildTitle(cmd, len(chars)), Items: items}
}

func characterName(ch vndb.Character) string {
	if ch.Original != "" {
		return ch.Original
	}
	return ch.Name
}

func (b *Builder) characterText(ch vndb.Character) string {
	var birthday string
	if len(ch.Birthday) == 2 {
		birthday = fmt.Sprintf("生日：%d月%d日", ch.Birthday[0], ch.Birthday[1])
	}

	var vns []string
	for _, vn := range ch.VNs {
		title := vn.AltTitle
		if title == "" {
			title = vn.Title
		}
		vns = append(vns, fmt.Sprintf("「%s」（%s）", title, vn.ID))
	}

	var blood, wh, genderOuter, genderInner, bwh, cup string
	if b.characterOptions["a"] && ch.BloodType != "" {
		blood = "血型：" + strings.ToUpper(ch.BloodType)
	}
	if b.characterOptions["b"] && (ch.Height > 0 || ch.Weight > 0) {
		wh = fmt.Sprintf("身高/体重（cm/kg）：%s/%s", orUnknown(ch.Height), orUnknown(ch.Weight))
	}
	if b.characterOptions["c"] && len(ch.Sex) > 0 {
		genderOuter = "性别：" + genderNames[ch.Sex[0]]
	}
	if b.characterOptions["d"] && len(ch.Sex) > 1 {
		genderInner = "真实性别：" + genderNames[ch.Sex[1]]
	}
	if b.characterOptions["e"] && (ch.Bust > 0 || ch.Waist > 0 || ch.Hips > 0) {
		bwh = fmt.Sprintf("三围：%s-%s-%s", orUnknown(ch.Bust), orUnknown(ch.Waist), orUnknown(ch.Hips))
	}
	if b.characterOptions["f"] && ch.Cup != "" {
		cup = "罩杯：" + strings.ToUpper(ch.Cup)
	}

	return joinFields(
		"VNDB ID："+ch.ID,
		optional("别名：", strings.Join(ch.Aliases, "、")),
		birthday,
		optional("出场作品（VNDB ID）：", strings.Join(vns, "、")),
		blood, wh, genderOuter, genderInner, bwh, cup,
	)
}

func orUnknown(v int) string {
	if v == 0 {
		return "??"
	}
	return fmt.Sprintf("%d", v)
}

// BuildProducers shapes producer results. vns[i] must be pros[i]'s titles;
// the caller guarantees positional alignment.
func (b *Builder) BuildProducers(cmd *command.Command, pros []vndb.Producer, vns [][]vndb.VN) *Payload {
	blocks := make([]ProducerBlock, 0, len(pros))
	for i, pro := range pros {
		name := pro.Original
		if name == "" {
			name = pro.Name
		}
		info := joinFields(
			"VNDB ID："+pro.ID,
			"名称："+name,
			optional("别称：", strings.Join(pro.Aliases, "、")),
			optional("文本语言：", langNames[pro.Lang]),
			optional("类型：", producerTypes[pro.Type]),
		)

		var top []Item
		for _, vn := range vns[i] {
			title := vn.AltTitle
			if title == "" {
				title = vn.Title
			}
			top = append(top, Item{
				Image: imageURL(vn.Image),
				Text: joinFields(
					"VNDB ID："+vn.ID,
					"名称："+title,
					optional("发布日期：", vn.Released),
					optionalF(vn.Rating, "贝叶斯评分：%v"),
				),
			})
		}
		blocks = append(blocks, ProducerBlock{ColumnInfo: info, VNs: top})
	}
	return &Payload{Title: buildTitle(cmd, len(pros)), Producers: blocks}
}

func gameText(game touchgal.Game, vndbID string) string {
	var tags []string
	for _, t := range game.Tags {
		tags = append(tags, t.Tag.Name)
	}
	return joinFields(
		optional("VNDB ID：", vndbID),
		fmt.Sprintf("TouchGal ID：%d", game.ID),
		optional("标签：", strings.Join(tags, "、")),
		optionalF(game.AverageRating, "站内评分：%v"),
		optional("站内资源：", strings.Join(game.Type, "、")),
		optional("资源语言：", langList(game.Language)),
		optional("资源平台：", strings.Join(game.Platform, "、")),
	)
}

// BuildDetails shapes the single-work detail view for the random pick and
// the recommendation session.
func (b *Builder) BuildDetails(cmd *command.Command, game touchgal.Game, details *touchgal.Details) *Payload {
	info := &Info{
		SubTitle:  game.Name,
		MainImage: game.Banner,
		Text:      gameText(game, detailsVNDBID(details)),
	}
	if details != nil {
		if details.Title != "" {
			info.SubTitle = details.Title
		}
		info.Description = strings.ReplaceAll(details.Description, "\n", br)
		info.Images = details.Images
	}
	return &Payload{Title: buildTitle(cmd, 1), Info: info}
}

func detailsVNDBID(details *touchgal.Details) string {
	if details == nil {
		return ""
	}
	return details.VNDBID
}

// BuildSelectNodes shapes the numbered disambiguation previews: one grouped
// node per candidate with an inline thumbnail. Thumbnail downloads degrade
// to the placeholder image, never abort the list.
func (b *Builder) BuildSelectNodes(ctx context.Context, games []touchgal.Game) []bus.Node {
	nodes := make([]bus.Node, 0, len(games))
	for i, game := range games {
		text := joinFields(
			fmt.Sprintf("【%d】%s", i+1, game.Name),
			gameText(game, ""),
		)
		nodes = append(nodes, bus.Node{
			Text:     strings.ReplaceAll(text, br, "\n"),
			ImageB64: b.images.FetchThumbB64(ctx, game.Banner, previewMaxSide),
		})
	}
	return nodes
}

// BuildResourceNodes shapes download results as one text node per resource.
func (b *Builder) BuildResourceNodes(resources []touchgal.Resource) []bus.Node {
	nodes := make([]bus.Node, 0, len(resources))
	for _, r := range resources {
		text := joinFields(
			optional("标题：", r.Name),
			optional("类型：", r.Section),
			optional("资源平台：", r.Storage),
			optional("支持平台：", strings.Join(r.Platform, "、")),
			optional("文件大小：", r.Size),
			optional("标签：", strings.Join(r.Type, "、")),
			optional("资源语言：", langList(r.Language)),
			optional("链接：", r.Content),
			optional("提取码：", r.Code),
			optional("解压码：", r.Password),
			optional("备注：", r.Note),
		)
		nodes = append(nodes, bus.Node{Text: strings.ReplaceAll(text, br, "\n")})
	}
	return nodes
}

// BuildTrace shapes recognition results. refs[i][j] is the cross-reference
// for detection i's candidate j; an empty result becomes an explicit "no
// record" item instead of being dropped.
func (b *Builder) BuildTrace(cmd *command.Command, resp *animetrace.Response, refs [][][]vndb.Character, model animetrace.Model) *Payload {
	var items []Item
	for i, det := range resp.Data {
		for j, cand := range det.Characters {
			if j >= len(refs[i]) {
				break
			}
			matches := refs[i][j]
			if len(matches) == 0 {
				items = append(items, Item{
					SubTitle: cand.Character,
					Text: joinFields(
						"出自作品："+cand.Work,
						"VNDB 无相关记录",
					),
				})
				continue
			}
			ch := matches[0]
			var works []string
			for _, vn := range ch.VNs {
				title := vn.AltTitle
				if title == "" {
					title = vn.Title
				}
				works = append(works, fmt.Sprintf("「%s」（%s）", title, vn.ID))
			}
			items = append(items, Item{
				SubTitle: characterName(ch),
				Image:    imageURL(ch.Image),
				Text: joinFields(
					"VNDB ID："+ch.ID,
					"出自作品："+cand.Work,
					optional("出场作品（VNDB ID）：", strings.Join(works, "、")),
				),
			})
		}
	}

	title := joinFields(
		"搜索指令「find」",
		fmt.Sprintf("检测区域「%d处」", len(resp.Data)),
		fmt.Sprintf("检测模型「%s」", model),
	)
	return &Payload{Title: title, Items: items}
}

// steamHeaderURL is the store's header image for one app.
func steamHeaderURL(appID int) string {
	return fmt.Sprintf("https://steamcdn-a.akamaihd.net/steam/apps/%d/header.jpg", appID)
}

// BuildReport shapes the periodic library report from a synchronized record.
func (b *Builder) BuildReport(rec *creds.Record, profile *steam.Profile) *Payload {
	title := joinFields(
		fmt.Sprintf("「%s」的游戏库报告", profile.PersonaName),
		fmt.Sprintf("共「%d款」游戏", len(rec.Games)),
		"同步时间："+rec.LastSync.Format(time.DateTime),
	)

	// map iteration order would make the rendered artifact nondeterministic
	appIDs := make([]int, 0, len(rec.Games))
	for appID := range rec.Games {
		appIDs = append(appIDs, appID)
	}
	sort.Slice(appIDs, func(i, j int) bool {
		return rec.Games[appIDs[i]].PlaytimeMinutes > rec.Games[appIDs[j]].PlaytimeMinutes
	})

	items := make([]Item, 0, len(rec.Games))
	for _, appID := range appIDs {
		game := rec.Games[appID]
		var lastPlayed string
		if game.LastPlayed > 0 {
			lastPlayed = "最近游玩：" + time.Unix(game.LastPlayed, 0).Format(time.DateOnly)
		}
		items = append(items, Item{
			SubTitle: game.Name,
			Image:    orDefault(game.ImageRef, steamHeaderURL(appID)),
			Text: joinFields(
				fmt.Sprintf("游玩时长：%.1f小时", float64(game.PlaytimeMinutes)/60),
				optional("成就完成度：", game.Achievement),
				lastPlayed,
			),
		})
	}
	return &Payload{Title: title, Items: items}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
