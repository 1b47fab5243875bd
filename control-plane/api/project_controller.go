package api

import (
	"net/http"

	"github.com/QTuan97/HC-API-Plat/control-plane/logger"
	"github.com/QTuan97/HC-API-Plat/control-plane/service"
	"github.com/QTuan97/HC-API-Plat/control-plane/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProjectController handles HTTP requests for project operations.
type ProjectController struct {
	projectService *service.ProjectService
}

// NewProjectController creates a new ProjectController.
func NewProjectController(projectService *service.ProjectService) *ProjectController {
	return &ProjectController{projectService: projectService}
}

// List handles GET /api/projects
func (pc *ProjectController) List(c *gin.Context) {
	c.JSON(http.StatusOK, pc.projectService.ListProjects())
}

// Create handles POST /api/projects
func (pc *ProjectController) Create(c *gin.Context) {
	log := logger.WithComponent("api.project")

	var project storage.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		log.Warn("Invalid request body", zap.Error(err))
		badBody(c, err)
		return
	}

	if err := pc.projectService.CreateProject(&project); err != nil {
		log.Warn("Failed to create project", zap.String("name", project.Name), zap.Error(err))
		_ = c.Error(err)
		return
	}

	logger.WithProjectID(project.ID).Info("Project created", zap.String("name", project.Name))
	c.JSON(http.StatusCreated, project)
}

// Update handles PUT /api/projects/:id
func (pc *ProjectController) Update(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	log := logger.WithProjectID(id)

	var project storage.Project
	if err := c.ShouldBindJSON(&project); err != nil {
		log.Warn("Invalid request body for update", zap.Error(err))
		badBody(c, err)
		return
	}

	if err := pc.projectService.UpdateProject(id, &project); err != nil {
		log.Warn("Failed to update project", zap.Error(err))
		_ = c.Error(err)
		return
	}

	log.Info("Project updated")
	c.JSON(http.StatusOK, project)
}

// Delete handles DELETE /api/projects/:id
func (pc *ProjectController) Delete(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	if err := pc.projectService.DeleteProject(id); err != nil {
		_ = c.Error(err)
		return
	}

	logger.WithProjectID(id).Info("Project deleted")
	c.Status(http.StatusNoContent)
}
