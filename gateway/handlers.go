package gateway

import (
	"chatwire/auth"
	"chatwire/contract"
	"chatwire/domain"
	"chatwire/errors"
	"chatwire/media"
	"chatwire/observability"
	"chatwire/repositories"
	"chatwire/search"
	"chatwire/services"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

const searchLimit = 20

// Deps bundles everything the HTTP layer needs. Kept as one container so
// wiring stays readable in main.
type Deps struct {
	Log           *slog.Logger
	Auth          services.IAuthService
	Authenticator contract.Authenticator
	Users         repositories.IUserRepository
	Relay         contract.IRelay
	Registry      contract.IRegistry
	Search        *search.Index
	Media         *media.Store
	Stats         *observability.Stats
}

type Handler struct {
	log           *slog.Logger
	auth          services.IAuthService
	authenticator contract.Authenticator
	users         repositories.IUserRepository
	relay         contract.IRelay
	registry      contract.IRegistry
	searcher      *search.Index
	media         *media.Store
	stats         *observability.Stats
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		log:           d.Log,
		auth:          d.Auth,
		authenticator: d.Authenticator,
		users:         d.Users,
		relay:         d.Relay,
		registry:      d.Registry,
		searcher:      d.Search,
		media:         d.Media,
		stats:         d.Stats,
	}
}

type registerRequest struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sendRequest struct {
	Text     string `json:"text"`
	ImageRef string `json:"imageRef"`
}

type avatarRequest struct {
	Ref string `json:"ref"`
}

func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}

	token, err := h.auth.Register(req.DisplayName, req.Email, req.Password)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}

	token, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Contacts lists every known identity except the caller's own.
func (h *Handler) Contacts(c *gin.Context) {
	self := currentIdentity(c)

	identities, err := h.users.ListIdentities()
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	contacts := lo.Reject(identities, func(identity domain.Identity, _ int) bool {
		return identity.ID == self.ID
	})

	c.JSON(http.StatusOK, gin.H{"contacts": contacts})
}

func (h *Handler) History(c *gin.Context) {
	self := currentIdentity(c)

	messages, err := h.relay.History(c.Request.Context(), domain.HistoryCommand{
		SelfID: self.ID,
		PeerID: c.Param("peer"),
	})
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *Handler) Send(c *gin.Context) {
	self := currentIdentity(c)

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}

	message, err := h.relay.Send(c.Request.Context(), domain.SendCommand{
		SenderID:   self.ID,
		ReceiverID: c.Param("peer"),
		Text:       req.Text,
		ImageRef:   req.ImageRef,
	})
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, message)
}

func (h *Handler) SearchMessages(c *gin.Context) {
	self := currentIdentity(c)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}

	hits, err := h.searcher.Search(c.Request.Context(), self.ID, c.Query("peer"), query, searchLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

// UploadMedia stores one image and returns the ref to embed in messages.
func (h *Handler) UploadMedia(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ref, err := h.media.Save(data)
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}

func (h *Handler) ServeMedia(c *gin.Context) {
	path, err := h.media.Path(c.Param("name"))
	if err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.File(path)
}

// UpdateAvatar points the caller's profile at a previously uploaded ref.
func (h *Handler) UpdateAvatar(c *gin.Context) {
	self := currentIdentity(c)

	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidPayload.Error()})
		return
	}

	// Only refs the media store actually holds are accepted.
	name := strings.TrimPrefix(req.Ref, "/media/")
	if _, err := h.media.Path(name); err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	if err := h.users.UpdateAvatar(self.ID, req.Ref); err != nil {
		c.JSON(errors.MapToHTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func currentIdentity(c *gin.Context) domain.Identity {
	value, _ := c.Get(auth.IdentityKey)
	identity, _ := value.(domain.Identity)
	return identity
}
