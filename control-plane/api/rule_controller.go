package api

import (
	"net/http"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RuleController handles HTTP requests for rule operations. With scoped set,
// the project comes from the :id path parameter; otherwise the flat rule
// collection is served.
type RuleController struct {
	ruleService *service.RuleService
	scoped      bool
}

// NewRuleController creates a controller for /api/projects/:id/rules.
func NewRuleController(ruleService *service.RuleService) *RuleController {
	return &RuleController{ruleService: ruleService, scoped: true}
}

// NewFlatRuleController creates a controller for /api/rules.
func NewFlatRuleController(ruleService *service.RuleService) *RuleController {
	return &RuleController{ruleService: ruleService}
}

func (rc *RuleController) projectID(c *gin.Context) (int64, bool) {
	if !rc.scoped {
		return 0, true
	}
	return idParam(c, "id")
}

// List handles GET .../rules
func (rc *RuleController) List(c *gin.Context) {
	projectID, ok := rc.projectID(c)
	if !ok {
		return
	}

	rules, err := rc.ruleService.ListRules(projectID)
	if err != nil {
		c.Set(resourceKey, "Project")
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Create handles POST .../rules
func (rc *RuleController) Create(c *gin.Context) {
	log := logger.WithComponent("api.rule")
	projectID, ok := rc.projectID(c)
	if !ok {
		return
	}

	var input service.RuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid request body", zap.Error(err))
		badBody(c, err)
		return
	}

	rule, err := rc.ruleService.CreateRule(projectID, &input)
	if err != nil {
		log.Warn("Failed to create rule", zap.Int64("project_id", projectID), zap.Error(err))
		c.Set(resourceKey, "Project")
		_ = c.Error(err)
		return
	}

	logger.WithRuleID(rule.ID).Info("Rule created",
		zap.Int64("project_id", rule.ProjectID),
		zap.String("method", rule.Method),
		zap.String("path_regex", rule.PathRegex),
		zap.String("response_type", string(rule.ResponseType)))
	c.JSON(http.StatusCreated, rule)
}

// Update handles PUT .../rules/:rule_id
func (rc *RuleController) Update(c *gin.Context) {
	projectID, ok := rc.projectID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "rule_id")
	if !ok {
		return
	}
	log := logger.WithRuleID(id)

	var input service.RuleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		log.Warn("Invalid request body for update", zap.Error(err))
		badBody(c, err)
		return
	}

	rule, err := rc.ruleService.UpdateRule(projectID, id, &input)
	if err != nil {
		log.Warn("Failed to update rule", zap.Error(err))
		_ = c.Error(err)
		return
	}

	log.Info("Rule updated")
	c.JSON(http.StatusOK, rule)
}

// Delete handles DELETE .../rules/:rule_id
func (rc *RuleController) Delete(c *gin.Context) {
	projectID, ok := rc.projectID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "rule_id")
	if !ok {
		return
	}

	if err := rc.ruleService.DeleteRule(projectID, id); err != nil {
		_ = c.Error(err)
		return
	}

	logger.WithRuleID(id).Info("Rule deleted")
	c.Status(http.StatusNoContent)
}

// Toggle handles POST .../rules/:rule_id/toggle
func (rc *RuleController) Toggle(c *gin.Context) {
	projectID, ok := rc.projectID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "rule_id")
	if !ok {
		return
	}

	rule, err := rc.ruleService.ToggleRule(projectID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	logger.WithRuleID(id).Info("Rule toggled", zap.Bool("enabled", rule.Enabled))
	c.JSON(http.StatusOK, rule)
}
