package crisis

import (
	"fmt"
	"strings"
)

// Region 是一个省或地区的本地心理援助资源，中英文各一份。
type Region struct {
	Code      string
	NameEN    string
	NameZH    string
	Resources []string
	// ResourcesZH 为空时沿用英文条目。
	ResourcesZH []string
}

func (r Region) resourcesFor(lang string) []string {
	if lang == "zh" && len(r.ResourcesZH) > 0 {
		return r.ResourcesZH
	}
	return r.Resources
}

func (r Region) nameFor(lang string) string {
	if lang == "zh" {
		return r.NameZH
	}
	return r.NameEN
}

// 全国 24 小时资源。
var (
	nationalEN = []string{
		"**988** - Suicide Crisis Helpline (call or text, 24/7, free, bilingual)",
		"**1-833-456-4566** - Crisis Services Canada (call) or text **45645**",
		"**911** - If this is an emergency, call immediately",
		"Go to your nearest emergency department",
	}
	nationalZH = []string{
		"**988** - 自杀危机热线（电话或短信，24小时，免费，双语）",
		"**1-833-456-4566** - Crisis Services Canada（电话）或发短信至 **45645**",
		"**911** - 情况紧急时请立即拨打",
		"前往最近的医院急诊科",
	}
)

// NationalNumbers 是危机回复中必须保留的全国热线号码。
var NationalNumbers = []string{"988", "1-833-456-4566", "45645", "911"}

var hopeForWellness = []string{
	"Contact your local health centre",
	"Hope for Wellness Helpline (for Indigenous peoples): 1-855-242-3310",
}

var hopeForWellnessZH = []string{
	"联系当地健康中心",
	"Hope for Wellness Helpline（原住民）: 1-855-242-3310",
}

// Regions 按固定顺序列出加拿大各省与地区。
var Regions = []Region{
	{Code: "BC", NameEN: "British Columbia", NameZH: "不列颠哥伦比亚省", Resources: []string{
		"HealthLink BC: 811",
		"BC Mental Health Support Line: 310-6789 (no area code needed)",
		"Bounce Back BC",
		"www.here2talk.ca (for post-secondary students)",
	}, ResourcesZH: []string{
		"HealthLink BC: 811",
		"BC Mental Health Support Line: 310-6789（无需区号）",
		"Bounce Back BC",
		"www.here2talk.ca（大专院校学生）",
	}},
	{Code: "AB", NameEN: "Alberta", NameZH: "阿尔伯塔省", Resources: []string{
		"Health Link: 811",
		"Mental Health Help Line: 1-877-303-2642",
		"Addiction Helpline: 1-866-332-2322",
	}},
	{Code: "SK", NameEN: "Saskatchewan", NameZH: "萨斯喀彻温省", Resources: []string{
		"HealthLine: 811",
		"Saskatchewan Crisis Line: 306-525-5333",
	}},
	{Code: "MB", NameEN: "Manitoba", NameZH: "曼尼托巴省", Resources: []string{
		"Health Links: 204-788-8200 or 1-888-315-9257",
		"Klinic Crisis Line: 204-786-8686 or 1-888-322-3019",
	}, ResourcesZH: []string{
		"Health Links: 204-788-8200 或 1-888-315-9257",
		"Klinic Crisis Line: 204-786-8686 或 1-888-322-3019",
	}},
	{Code: "ON", NameEN: "Ontario", NameZH: "安大略省", Resources: []string{
		"Telehealth Ontario: 1-866-797-0000",
		"ConnexOntario: 1-866-531-2600",
	}},
	{Code: "QC", NameEN: "Quebec", NameZH: "魁北克省", Resources: []string{
		"Info-Santé: 811",
		"Suicide Prevention: 1-866-APPELLE (277-3553)",
	}},
	{Code: "NB", NameEN: "New Brunswick", NameZH: "新不伦瑞克省", Resources: []string{
		"Tele-Care: 811",
		"Chimo Helpline: 1-800-667-5005",
	}},
	{Code: "NS", NameEN: "Nova Scotia", NameZH: "新斯科舍省", Resources: []string{
		"811 (24/7 nursing line)",
		"Mental Health Crisis Line: 1-888-429-8167",
	}, ResourcesZH: []string{
		"811（24小时护理热线）",
		"Mental Health Crisis Line: 1-888-429-8167",
	}},
	{Code: "PE", NameEN: "Prince Edward Island", NameZH: "爱德华王子岛省", Resources: []string{
		"Health PEI: 811",
		"Island Help Line: 1-800-218-2885",
	}},
	{Code: "NL", NameEN: "Newfoundland and Labrador", NameZH: "纽芬兰与拉布拉多省", Resources: []string{
		"HealthLine: 811",
		"Mental Health Crisis Line: 1-888-737-4668",
	}},
	{Code: "YT", NameEN: "Yukon", NameZH: "育空地区", Resources: hopeForWellness, ResourcesZH: hopeForWellnessZH},
	{Code: "NT", NameEN: "Northwest Territories", NameZH: "西北地区", Resources: hopeForWellness, ResourcesZH: hopeForWellnessZH},
	{Code: "NU", NameEN: "Nunavut", NameZH: "努纳武特地区", Resources: hopeForWellness, ResourcesZH: hopeForWellnessZH},
}

// LookupRegion 按代码查找地区，大小写不敏感。
func LookupRegion(code string) (Region, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Region{}, false
	}
	for _, r := range Regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// regionSection 生成地区资源段落；region 未知时列出全部地区。
func regionSection(lang, region string) string {
	if r, ok := LookupRegion(region); ok {
		if lang == "zh" {
			return fmt.Sprintf("**%s资源：**\n%s", r.NameZH, bulletList(r.resourcesFor(lang)))
		}
		return fmt.Sprintf("**%s Resources:**\n%s", r.NameEN, bulletList(r.resourcesFor(lang)))
	}

	var b strings.Builder
	if lang == "zh" {
		b.WriteString("**各省资源：**\n")
	} else {
		b.WriteString("**Provincial Resources:**\n")
	}
	for _, r := range Regions {
		sep := ":"
		if lang == "zh" {
			sep = "："
		}
		fmt.Fprintf(&b, "\n**%s%s**\n%s\n", r.nameFor(lang), sep, bulletList(r.resourcesFor(lang)))
	}
	return strings.TrimRight(b.String(), "\n")
}
