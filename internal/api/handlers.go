package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard"
	"github.com/menta2k/photocard/internal/utils"
	"github.com/menta2k/photocard/pkg/coords"
	"github.com/menta2k/photocard/pkg/layout"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/render"
	"github.com/menta2k/photocard/pkg/types"
)

// Handler serves the card API on top of a Studio
type Handler struct {
	studio    *photocard.Studio
	log       logrus.FieldLogger
	validate  *validator.Validate
	maxUpload int64
}

// NewHandler creates a handler. Uploads larger than maxUploadMB are refused.
func NewHandler(studio *photocard.Studio, log logrus.FieldLogger, maxUploadMB int) *Handler {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	return &Handler{
		studio:    studio,
		log:       log,
		validate:  v,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

type createCardRequest struct {
	Name  string `json:"name" validate:"max=80"`
	Title string `json:"title" validate:"max=120"`
}

type textRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=80"`
	Title *string `json:"title" validate:"omitempty,max=120"`
}

type cropRequest struct {
	Region *types.CropRegion `json:"region"`
	Zoom   float64           `json:"zoom" validate:"omitempty,gte=1"`
}

type commitRequest struct {
	Element   string            `json:"element" validate:"required"`
	Kind      string            `json:"kind" validate:"required,oneof=position size"`
	TopLeft   coords.PixelPoint `json:"topLeft"`
	Size      coords.PixelSize  `json:"size"`
	Container coords.Container  `json:"container"`
}

type elementPatch struct {
	Position *types.Point      `json:"position"`
	Size     *types.PhotoSize  `json:"size"`
	Style    *types.StylePatch `json:"style"`
}

type renderQuery struct {
	Width    int     `form:"width" validate:"omitempty,min=1,max=4000"`
	Height   int     `form:"height" validate:"omitempty,min=1,max=4000"`
	Scale    float64 `form:"scale" validate:"omitempty,gt=0,lte=8"`
	Format   string  `form:"format" validate:"omitempty,oneof=jpeg jpg png webp"`
	Download bool    `form:"download"`
}

// fail aborts the request with the coded form of err
func (h *Handler) fail(c *gin.Context, err error) {
	e := asError(err)
	_ = c.Error(err)
	if e.Code >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.AbortWithStatusJSON(e.Code, gin.H{"error": e.Error()})
}

// check validates a decoded request
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		return &Error{http.StatusBadRequest, errors.New(strings.Join(msgs, "; "))}
	}
	return &Error{http.StatusBadRequest, err}
}

// bindJSON decodes and validates a JSON body
func (h *Handler) bindJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return &Error{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)}
	}
	return h.check(v)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": photocard.Version})
}

func (h *Handler) listCards(c *gin.Context) {
	cards := h.studio.Store().List()
	c.JSON(http.StatusOK, gin.H{"count": len(cards), "cards": cards})
}

func (h *Handler) createCard(c *gin.Context) {
	var req createCardRequest
	if c.Request.ContentLength != 0 {
		if err := h.bindJSON(c, &req); err != nil {
			h.fail(c, err)
			return
		}
	}

	store := h.studio.Store()
	card := h.studio.CreateCard()
	var err error
	if req.Name != "" {
		if card, err = store.SetName(card.ID, req.Name); err != nil {
			h.fail(c, err)
			return
		}
	}
	if req.Title != "" {
		if card, err = store.SetTitle(card.ID, req.Title); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, card)
}

func (h *Handler) getCard(c *gin.Context) {
	card, err := h.studio.Store().Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) deleteCard(c *gin.Context) {
	if err := h.studio.Store().Delete(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) updateText(c *gin.Context) {
	var req textRequest
	if err := h.bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if req.Name == nil && req.Title == nil {
		h.fail(c, NewError(http.StatusBadRequest, "name or title is required"))
		return
	}

	id := c.Param("id")
	store := h.studio.Store()
	card, err := store.Get(id)
	if err == nil && req.Name != nil {
		card, err = store.SetName(id, *req.Name)
	}
	if err == nil && req.Title != nil {
		card, err = store.SetTitle(id, *req.Title)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) uploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)

	tooLarge := NewError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("photo exceeds %s", utils.FormatFileSize(h.maxUpload)))

	fh, err := c.FormFile("photo")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			h.fail(c, tooLarge)
			return
		}
		h.fail(c, &Error{http.StatusBadRequest, fmt.Errorf("photo file is required: %w", err)})
		return
	}
	if fh.Size > h.maxUpload {
		h.fail(c, tooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.fail(c, err)
		return
	}

	src := types.SourceRef{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        len(data),
	}
	card, res, err := h.studio.Upload(c.Request.Context(), c.Param("id"), src, data)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"card": card, "normalization": res}
	if res.TooSmall {
		resp["warning"] = "photo is smaller than recommended and may look blurry when printed"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) crop(c *gin.Context) {
	var req cropRequest
	if c.Request.ContentLength != 0 {
		if err := h.bindJSON(c, &req); err != nil {
			h.fail(c, err)
			return
		}
	}

	id := c.Param("id")
	var (
		card layout.Card
		err  error
	)
	if req.Region != nil {
		card, err = h.studio.Crop(id, *req.Region)
	} else {
		card, err = h.studio.AutoCrop(c.Request.Context(), id, req.Zoom)
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) clearCrop(c *gin.Context) {
	card, err := h.studio.Store().ClearCrop(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// commit ends an interaction observed in a rendered container and stores it
// in percent-space.
func (h *Handler) commit(c *gin.Context) {
	var req commitRequest
	if err := h.bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	el, err := types.ParseElementType(req.Element)
	if err != nil {
		h.fail(c, &Error{http.StatusBadRequest, err})
		return
	}

	id := c.Param("id")
	store := h.studio.Store()
	var commit coords.Commit
	switch req.Kind {
	case "position":
		commit, err = req.Container.CommitPosition(el, req.TopLeft, req.Size)
	case "size":
		commit, err = h.resize(id, el, req.Container, req.Size.Width)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	card, err := store.Apply(id, commit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"card": card, "commit": commit})
}

// resize starts the gesture from the stored photo box so the clamp works
// around the center the card will be rendered from.
func (h *Handler) resize(id string, el types.ElementType, box coords.Container, width float64) (coords.Commit, error) {
	if el != types.ElementPhoto {
		return coords.Commit{}, fmt.Errorf("%w: %s", coords.ErrNotResizable, el)
	}
	if !box.Valid() {
		return coords.Commit{}, fmt.Errorf("%w: %gx%g", coords.ErrInvalidContainer, box.Width, box.Height)
	}
	card, err := h.studio.Store().Get(id)
	if err != nil {
		return coords.Commit{}, err
	}
	size := box.PhotoPixelSize(card.PhotoSize)
	g, err := box.Begin(el, box.ToPixelTopLeft(card.PhotoPosition, size), size)
	if err != nil {
		return coords.Commit{}, err
	}
	return g.CommitSize(width)
}

func (h *Handler) patchElement(c *gin.Context) {
	el, err := types.ParseElementType(c.Param("element"))
	if err != nil {
		h.fail(c, &Error{http.StatusBadRequest, err})
		return
	}
	var req elementPatch
	if err := h.bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if req.Position == nil && req.Size == nil && req.Style == nil {
		h.fail(c, layout.ErrEmptyCommit)
		return
	}

	id := c.Param("id")
	store := h.studio.Store()
	var card layout.Card
	if el == types.ElementPhoto {
		if req.Style != nil {
			h.fail(c, NewError(http.StatusBadRequest, "photo has no text style"))
			return
		}
		card, err = store.UpdatePhoto(id, layout.PhotoUpdate{Position: req.Position, Size: req.Size})
	} else {
		if req.Size != nil {
			h.fail(c, fmt.Errorf("%w: %s", coords.ErrNotResizable, el))
			return
		}
		card, err = store.UpdateText(el, id, layout.TextUpdate{Position: req.Position, Style: req.Style})
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) reset(c *gin.Context) {
	card, err := h.studio.Store().Reset(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *Handler) render(c *gin.Context) {
	var q renderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, &Error{http.StatusBadRequest, fmt.Errorf("invalid query: %w", err)})
		return
	}
	if err := h.check(&q); err != nil {
		h.fail(c, err)
		return
	}

	vp := h.studio.Viewport()
	if q.Width > 0 {
		vp.Width = q.Width
	}
	if q.Height > 0 {
		vp.Height = q.Height
	}
	if q.Scale > 0 {
		vp.Scale = q.Scale
	}
	format := h.studio.Format()
	if q.Format != "" {
		f, err := raster.ParseFormat(q.Format)
		if err != nil {
			h.fail(c, err)
			return
		}
		format = f
	}

	id := c.Param("id")
	var data []byte
	if q.Download {
		card, err := h.studio.Store().Get(id)
		if err == nil {
			data, err = h.studio.Export(id, vp, format)
		}
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.ExportFilename(card.Name, format)))
	} else {
		img, err := h.studio.Render(id, vp)
		if err == nil {
			data, err = render.Encode(img, format)
		}
		if err != nil {
			h.fail(c, err)
			return
		}
	}
	c.Data(http.StatusOK, format.MimeType(), data)
}
