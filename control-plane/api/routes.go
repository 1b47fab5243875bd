package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Controllers bundles the handlers served under /api.
type Controllers struct {
	Projects  *ProjectController
	Rules     *RuleController
	FlatRules *RuleController
	Logs      *LogController
}

// RegisterRoutes mounts the admin API on router and returns the /api group so
// callers can add more endpoints.
func RegisterRoutes(router *gin.Engine, ctl Controllers) *gin.RouterGroup {
	apiGroup := router.Group("/api")

	apiGroup.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	projects := apiGroup.Group("/projects", withResource("Project"))
	{
		projects.GET("", ctl.Projects.List)
		projects.POST("", ctl.Projects.Create)
		projects.PUT("/:id", ctl.Projects.Update)
		projects.DELETE("/:id", ctl.Projects.Delete)

		scoped := projects.Group("/:id/rules", withResource("Rule"))
		scoped.GET("", ctl.Rules.List)
		scoped.POST("", ctl.Rules.Create)
		scoped.PUT("/:rule_id", ctl.Rules.Update)
		scoped.DELETE("/:rule_id", ctl.Rules.Delete)
		scoped.POST("/:rule_id/toggle", ctl.Rules.Toggle)
	}

	rules := apiGroup.Group("/rules", withResource("Rule"))
	{
		rules.GET("", ctl.FlatRules.List)
		rules.POST("", ctl.FlatRules.Create)
		rules.PUT("/:rule_id", ctl.FlatRules.Update)
		rules.DELETE("/:rule_id", ctl.FlatRules.Delete)
		rules.POST("/:rule_id/toggle", ctl.FlatRules.Toggle)
	}

	logs := apiGroup.Group("/logs", withResource("Log"))
	{
		logs.GET("", ctl.Logs.List)
		logs.POST("", ctl.Logs.Record)
		logs.DELETE("", ctl.Logs.Clear)
	}

	return apiGroup
}
