package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imulab-x/client-service/internal/models"
)

// CreateResponse 是注册成功的响应：完整元数据附带服务端签发的字段。
type CreateResponse struct {
	models.ClientPayload
	ClientSecret          string `json:"client_secret,omitempty"`
	ClientIDIssuedAt      int64  `json:"client_id_issued_at"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`
	RegistrationClientURI string `json:"registration_client_uri"`
}

func registrationURI(id string) string { return fmt.Sprintf("/client/%s", id) }

func setNoCache(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// @Summary      注册客户端
// @Description  校验元数据、签发密钥、解析 jwks_uri 与 request_uris 后持久化
// @Tags         client
// @Accept       json
// @Produce      json
// @Param        body  body   models.ClientPayload  true  "客户端元数据"
// @Success      201   {object} CreateResponse
// @Failure      400   {object} map[string]string
// @Failure      401   {object} map[string]string
// @Failure      429   {object} map[string]string
// @Router       /client [post]
func (h *Handler) createClient(c *gin.Context) {
	var req models.ClientPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	rec, secret, err := h.clientSvc.CreateClient(c.Request.Context(), req.Record())
	if err != nil {
		writeError(c, err)
		return
	}
	uri := registrationURI(rec.ID)
	setNoCache(c)
	c.Header("Location", uri)
	c.JSON(http.StatusCreated, CreateResponse{
		ClientPayload:         models.NewClientPayload(rec),
		ClientSecret:          secret,
		ClientIDIssuedAt:      rec.CreationTime.Unix(),
		ClientSecretExpiresAt: 0,
		RegistrationClientURI: uri,
	})
}

// @Summary      读取客户端
// @Tags         client
// @Produce      json
// @Param        clientId path string true "客户端 ID"
// @Success      200 {object} models.ClientPayload
// @Failure      404 {object} map[string]string
// @Router       /client/{clientId} [get]
func (h *Handler) getClient(c *gin.Context) {
	rec, err := h.clientSvc.GetClient(c.Request.Context(), c.Param("clientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	setNoCache(c)
	c.JSON(http.StatusOK, models.NewClientPayload(rec))
}

// @Summary      更新客户端
// @Description  以请求体整体替换元数据；id、创建时间与密钥保持不变
// @Tags         client
// @Accept       json
// @Produce      json
// @Param        clientId path string true "客户端 ID"
// @Param        body  body   models.ClientPayload  true  "客户端元数据"
// @Success      200 {object} models.ClientPayload
// @Failure      400 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /client/{clientId} [put]
func (h *Handler) updateClient(c *gin.Context) {
	var req models.ClientPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		badJSON(c, err)
		return
	}
	rec, err := h.clientSvc.UpdateClient(c.Request.Context(), c.Param("clientId"), req.Record())
	if err != nil {
		writeError(c, err)
		return
	}
	setNoCache(c)
	c.JSON(http.StatusOK, models.NewClientPayload(rec))
}

// @Summary      删除客户端
// @Tags         client
// @Param        clientId path string true "客户端 ID"
// @Success      204 {string} string "No Content"
// @Router       /client/{clientId} [delete]
func (h *Handler) deleteClient(c *gin.Context) {
	if err := h.clientSvc.DeleteClient(c.Request.Context(), c.Param("clientId")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
