package qa

import (
	"strings"
	"testing"

	"github.com/Dango-F/medical-chat/pkg/evidence"
)

func TestTemplateAnswerRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"headache", "最近总是头疼", "头痛的可能原因分析"},
		{"fever", "体温有点高", "发热的评估与建议"},
		{"drug", "吃什么药好", "药物信息"},
		{"diabetes", "血糖偏高怎么办", "糖尿病相关信息"},
		{"hypertension", "血压140正常吗", "高血压相关信息"},
		{"default", "最近睡不好", "关于您的问题"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TemplateAnswer(tt.query, "", nil)
			if !strings.Contains(got, tt.want) {
				t.Errorf("TemplateAnswer(%q) missing %q", tt.query, tt.want)
			}
			if !strings.Contains(got, "未使用AI大模型") {
				t.Error("fallback notice missing")
			}
		})
	}
}

func TestTemplateAnswerPrefersGraphContext(t *testing.T) {
	t.Parallel()

	got := TemplateAnswer("头疼", "\n【偏头痛】\n简介：发作性头痛。\n", nil)
	if !strings.Contains(got, "【偏头痛】") {
		t.Error("graph context not used")
	}
	if strings.Contains(got, "头痛的可能原因分析") {
		t.Error("topic template must not fire when graph context exists")
	}
}

func TestDefaultTemplateListsEvidence(t *testing.T) {
	t.Parallel()

	items := []evidence.Item{
		{Source: "pubmed", Section: "临床研究"},
		{Source: "who"},
	}
	got := TemplateAnswer("帮我查一下", "", items)
	if !strings.Contains(got, "1. 临床研究 [来源: pubmed]") {
		t.Errorf("evidence line malformed:\n%s", got)
	}
	if !strings.Contains(got, "2. 医学文献 [来源: who]") {
		t.Errorf("missing section default:\n%s", got)
	}
}

func TestNoGraphAnswerNamesEntities(t *testing.T) {
	t.Parallel()

	got := NoGraphAnswer([]ResolvedEntity{{Name: "罕见病A"}, {Name: "罕见病B"}})
	if !strings.Contains(got, `"罕见病A, 罕见病B"`) {
		t.Errorf("entities not named:\n%s", got)
	}
	if !strings.Contains(NoGraphAnswer(nil), "您所询问内容") {
		t.Error("empty entity fallback wording missing")
	}
}
