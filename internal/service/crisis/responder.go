package crisis

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/mindharbor/backend/internal/logger"
	"github.com/zhouzirui/mindharbor/backend/internal/model/chat"
)

// Translator 把英文危机回复翻译为用户语言。
type Translator interface {
	ToUserLanguage(ctx context.Context, conv *chat.Conversation, text, targetLang string) string
}

// Responder 生成固定结构的危机安全回复。
type Responder struct {
	translator    Translator
	defaultRegion string
	log           *logger.Logger
}

// NewResponder 创建回复生成器。defaultRegion 为空时列出所有地区。
func NewResponder(translator Translator, defaultRegion string, log *logger.Logger) *Responder {
	return &Responder{
		translator:    translator,
		defaultRegion: defaultRegion,
		log:           logger.OrNop(log).With("component", "crisis"),
	}
}

// Build 生成危机回复。英文与中文直接渲染，其他语言先生成英文再翻译；
// 翻译结果若丢失任一全国热线号码，则在末尾补上英文全国资源。
func (r *Responder) Build(ctx context.Context, conv *chat.Conversation, hasExplicitPlan bool, language, region string) string {
	if region == "" {
		region = r.defaultRegion
	}

	switch language {
	case "zh":
		return render("zh", hasExplicitPlan, region)
	case "en", "":
		return render("en", hasExplicitPlan, region)
	}

	english := render("en", hasExplicitPlan, region)
	if r.translator == nil {
		return english
	}

	translated := r.translator.ToUserLanguage(ctx, conv, english, language)
	if missing := missingNumbers(translated); len(missing) > 0 {
		r.log.Warn("translated crisis response lost hotline numbers, appending English resources",
			"language", language, "missing", missing)
		return translated + "\n\n**National Resources (24/7, Bilingual):**\n" + bulletList(nationalEN)
	}
	return translated
}

func missingNumbers(text string) []string {
	var missing []string
	for _, n := range NationalNumbers {
		if !strings.Contains(text, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

func render(lang string, explicit bool, region string) string {
	if lang == "zh" {
		national := bulletList(nationalZH)
		regional := regionSection("zh", region)
		if explicit {
			return fmt.Sprintf(zhExplicitTemplate, national, regional)
		}
		return fmt.Sprintf(zhIdeationTemplate, national, regional)
	}

	national := bulletList(nationalEN)
	regional := regionSection("en", region)
	if explicit {
		return fmt.Sprintf(enExplicitTemplate, national, regional)
	}
	return fmt.Sprintf(enIdeationTemplate, national, regional)
}

const enExplicitTemplate = `I'm really worried about your safety right now. What you just told me matters, and I want you to get help immediately.

🚨 **Get Help Now:**

**National Resources (24/7, Bilingual):**
%s

%s

**Please remember:**
- Your life has value and you deserve support
- These thoughts can be treated, and you don't have to face them alone
- Trained people can help you get through this moment
- Even if it feels unbearable now, this pain can ease

Please call **988** right now or go to your nearest emergency department. I'm here with you, but you need a professional's help immediately.`

const enIdeationTemplate = `I'm really concerned about your safety and wellbeing. The thoughts you've shared worry me, and I want you to reach out for support now.

🚨 **Reach Professional Help Now:**

**National Resources (24/7, Bilingual):**
%s

%s

**Tell someone you trust**: let a family member or friend know what you're going through so they can be with you.

**Please remember:**
- You are not alone, and many people want to help you
- These feelings can be treated
- Your life has value and is worth protecting
- Professional support can make a real difference

**If things get worse:**
If these thoughts grow stronger or you start making a plan, please immediately:
- Call **988** (Suicide Crisis Helpline)
- Go to your nearest emergency department
- Call **911**

Reaching out now is one of the most important things you can do for yourself. Your life matters.`

const zhExplicitTemplate = `我非常担心你现在的安全。你刚才说的话很重要，请立即寻求帮助。

🚨 **马上寻求帮助：**

**全国资源（24小时，双语）：**
%s

%s

**请记住：**
- 你的生命有价值，你值得被帮助
- 这些想法是可以治疗的，你不需要一个人扛着
- 专业人员可以陪你度过这个时刻
- 即使现在很难熬，这份痛苦是会减轻的

请现在就拨打 **988** 或前往最近的急诊科。我会在这里陪着你，但你需要马上得到专业的帮助。`

const zhIdeationTemplate = `我很担心你的安全和身心状况。你刚才说的想法让我很挂心，请现在就去寻求支持。

🚨 **马上联系专业帮助：**

**全国资源（24小时，双语）：**
%s

%s

**告诉一个你信任的人**：让家人或朋友知道你正在经历什么，让他们陪在你身边。

**请记住：**
- 你并不孤单，很多人愿意帮助你
- 这些感受是可以治疗的
- 你的生命有价值，值得被好好保护
- 专业的帮助可以带来真正的改变

**如果情况变得更糟：**
如果这些想法越来越强烈，或者你开始计划具体的行动，请立即：
- 拨打 **988**（自杀危机热线）
- 前往最近的医院急诊科
- 拨打 **911**

现在伸出手求助，是你能为自己做的最重要的事。你的生命很重要。`
