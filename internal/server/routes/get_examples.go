package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type exampleQuery struct {
	ID       int    `json:"id"`
	Query    string `json:"query"`
	Category string `json:"category"`
}

var exampleQueries = []exampleQuery{
	{1, "头痛两天了，可能是什么原因？什么情况需要就医？", "症状咨询"},
	{2, "偏头痛和紧张性头痛有什么区别？", "疾病鉴别"},
	{3, "布洛芬的用法用量和注意事项是什么？", "用药指导"},
	{4, "发烧38.5度，需要吃退烧药吗？", "症状咨询"},
	{5, "2型糖尿病的一线治疗药物是什么？", "治疗方案"},
	{6, "高血压患者的血压控制目标是多少？", "疾病管理"},
	{7, "感冒和流感有什么区别？如何治疗？", "疾病鉴别"},
	{8, "头痛伴发热和颈部僵硬是什么情况？", "危险信号"},
	{9, "糖尿病患者需要做哪些定期检查？", "健康管理"},
	{10, "奥司他韦什么时候服用效果最好？", "用药指导"},
}

// GetExamplesHandler returns the preset demo questions.
func GetExamplesHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"examples": exampleQueries,
		"total":    len(exampleQueries),
	})
}
