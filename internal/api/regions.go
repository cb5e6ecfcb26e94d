package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"propertypro/server/config"
)

type RegionGroupHandler struct {
	groups *config.RegionGroups
}

func NewRegionGroupHandler(groups *config.RegionGroups) *RegionGroupHandler {
	return &RegionGroupHandler{groups: groups}
}

func (h *RegionGroupHandler) ListRegionGroups(c *gin.Context) {
	c.JSON(http.StatusOK, h.groups.All())
}

func (h *RegionGroupHandler) GetRegionGroup(c *gin.Context) {
	group := h.groups.Get(c.Param("name"))
	if group == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Region group not found"})
		return
	}
	c.JSON(http.StatusOK, group)
}

// PutRegionGroup creates or replaces the named group.
func (h *RegionGroupHandler) PutRegionGroup(c *gin.Context) {
	name := c.Param("name")
	var group config.RegionGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if group.Name == "" {
		group.Name = name
	}
	if !strings.EqualFold(group.Name, name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name in URL does not match name in body"})
		return
	}

	if err := h.groups.Upsert(group); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, group)
}

func (h *RegionGroupHandler) DeleteRegionGroup(c *gin.Context) {
	name := c.Param("name")
	if h.groups.Get(name) == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Region group not found"})
		return
	}
	if err := h.groups.Delete(name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
