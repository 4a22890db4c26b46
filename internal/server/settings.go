package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hsn0918/netkb/internal/model"
)

func (s *Server) getTask(c *gin.Context) {
	task, found := s.queue.Get(c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "task not found", nil)
		return
	}
	ok(c, gin.H{"task": task})
}

func (s *Server) getSettings(c *gin.Context) {
	settings, err := s.store.GetSettings()
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot read settings", err)
		return
	}
	// API keys are write-only through the API.
	masked := settings
	masked.APIKeys = make(map[string]string, len(settings.APIKeys))
	for name, key := range settings.APIKeys {
		if key != "" {
			masked.APIKeys[name] = "configured"
		}
	}
	ok(c, gin.H{"settings": masked})
}

func (s *Server) putSettings(c *gin.Context) {
	var req model.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := s.store.SaveSettings(req); err != nil {
		fail(c, http.StatusInternalServerError, "cannot save settings", err)
		return
	}
	ok(c, gin.H{"saved": true})
}

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.store.ListCategories()
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot list categories", err)
		return
	}
	ok(c, gin.H{"categories": categories})
}

type createCategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *Server) createCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	category, err := s.store.CreateCategory(req.Name)
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot create category", err)
		return
	}
	ok(c, gin.H{"category": category})
}

func (s *Server) deleteCategory(c *gin.Context) {
	deleted, err := s.store.DeleteCategory(c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot delete category", err)
		return
	}
	if !deleted {
		fail(c, http.StatusNotFound, "category not found", nil)
		return
	}
	ok(c, gin.H{"deleted": true})
}

func (s *Server) listQueryLogs(c *gin.Context) {
	logs, err := s.store.ListQueryLogs()
	if err != nil {
		fail(c, http.StatusInternalServerError, "cannot list query logs", err)
		return
	}
	ok(c, gin.H{"logs": logs})
}
