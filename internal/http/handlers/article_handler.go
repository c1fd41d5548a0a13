package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
	"github.com/tbourn/go-admin-console/internal/services"
	"github.com/tbourn/go-admin-console/internal/utils"
)

// ListArticles godoc
// @ID          listArticles
// @Summary     List articles
// @Description Returns one page of articles through the resource cache. A page served after a failed refresh carries a warning.
// @Tags        Articles
// @Produce     json
// @Param       keyword      query  string  false  "Title keyword"
// @Param       category_id  query  int     false  "Category filter"  minimum(1)
// @Param       status       query  string  false  "Publication state"  Enums(draft, published, archived)
// @Param       page         query  int     false  "Page number"  minimum(1) default(1)
// @Param       per_page     query  int     false  "Items per page"  minimum(1) maximum(100) default(10)
// @Param       lang         query  string  false  "Response language"  Enums(zh-CN, en-US)
// @Success     200  {object}  handlers.ListResponse[domain.Article]
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Failure     504  {object}  handlers.ErrorResponse
// @Router      /articles [get]
func (h *Handlers) ListArticles(c *gin.Context) {
	page, perPage := paging(c)
	catID := int64(utils.AtoiDefault(c.Query("category_id"), 0))
	p, err := h.Articles.List(c.Request.Context(), services.ArticleFilter{
		Keyword:    c.Query("keyword"),
		CategoryID: catID,
		Status:     c.Query("status"),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		respondError(c, err, "articles.loadFailed")
		return
	}
	writeList(c, p, "articles.loadFailed")
}

// GetArticle godoc
// @ID          getArticle
// @Summary     Get an article
// @Tags        Articles
// @Produce     json
// @Param       id   path  int  true  "Article ID"
// @Success     200  {object}  domain.Article
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /articles/{id} [get]
func (h *Handlers) GetArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	a, err := h.Articles.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "articles.loadFailed")
		return
	}
	ok(c, http.StatusOK, a)
}

// CreateArticle godoc
// @ID          createArticle
// @Summary     Create an article
// @Description Validates the payload, writes it upstream and invalidates every cached article page.
// @Tags        Articles
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Replay protection key"
// @Param       body  body  domain.ArticleInput  true  "Article"
// @Success     201  {object}  domain.Article
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /articles [post]
func (h *Handlers) CreateArticle(c *gin.Context) {
	var in domain.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	a, err := h.Articles.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "articles.createFailed")
		return
	}
	ok(c, http.StatusCreated, a)
}

// UpdateArticle godoc
// @ID          updateArticle
// @Summary     Update an article
// @Tags        Articles
// @Accept      json
// @Produce     json
// @Param       id    path  int                  true  "Article ID"
// @Param       body  body  domain.ArticleInput  true  "Article"
// @Success     200  {object}  domain.Article
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /articles/{id} [put]
func (h *Handlers) UpdateArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in domain.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	a, err := h.Articles.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err, "articles.updateFailed")
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteArticle godoc
// @ID          deleteArticle
// @Summary     Delete an article
// @Tags        Articles
// @Param       id  path  int  true  "Article ID"
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /articles/{id} [delete]
func (h *Handlers) DeleteArticle(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.Articles.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "articles.deleteFailed")
		return
	}
	noContent(c)
}
