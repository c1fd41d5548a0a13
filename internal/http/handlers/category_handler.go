package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// ListCategories godoc
// @ID          listCategories
// @Summary     List categories
// @Tags        Categories
// @Produce     json
// @Param       page      query  int  false  "Page number"  minimum(1) default(1)
// @Param       per_page  query  int  false  "Items per page"  minimum(1) maximum(100) default(10)
// @Success     200  {object}  handlers.ListResponse[domain.Category]
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /categories [get]
func (h *Handlers) ListCategories(c *gin.Context) {
	page, perPage := paging(c)
	p, err := h.Categories.List(c.Request.Context(), page, perPage)
	if err != nil {
		respondError(c, err, "categories.loadFailed")
		return
	}
	writeList(c, p, "categories.loadFailed")
}

// GetCategory godoc
// @ID          getCategory
// @Summary     Get a category
// @Tags        Categories
// @Produce     json
// @Param       id  path  int  true  "Category ID"
// @Success     200  {object}  domain.Category
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /categories/{id} [get]
func (h *Handlers) GetCategory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	cat, err := h.Categories.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "categories.loadFailed")
		return
	}
	ok(c, http.StatusOK, cat)
}

// CreateCategory godoc
// @ID          createCategory
// @Summary     Create a category
// @Tags        Categories
// @Accept      json
// @Produce     json
// @Param       body  body  domain.CategoryInput  true  "Category"
// @Success     201  {object}  domain.Category
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /categories [post]
func (h *Handlers) CreateCategory(c *gin.Context) {
	var in domain.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	cat, err := h.Categories.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err, "categories.createFailed")
		return
	}
	ok(c, http.StatusCreated, cat)
}

// UpdateCategory godoc
// @ID          updateCategory
// @Summary     Update a category
// @Tags        Categories
// @Accept      json
// @Produce     json
// @Param       id    path  int                   true  "Category ID"
// @Param       body  body  domain.CategoryInput  true  "Category"
// @Success     200  {object}  domain.Category
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /categories/{id} [put]
func (h *Handlers) UpdateCategory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var in domain.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		failKey(c, http.StatusBadRequest, ErrCodeBadRequest, "error.badRequest")
		return
	}
	cat, err := h.Categories.Update(c.Request.Context(), id, in)
	if err != nil {
		respondError(c, err, "categories.updateFailed")
		return
	}
	ok(c, http.StatusOK, cat)
}

// DeleteCategory godoc
// @ID          deleteCategory
// @Summary     Delete a category
// @Tags        Categories
// @Param       id  path  int  true  "Category ID"
// @Success     204  {string}  string  "No Content"
// @Failure     502  {object}  handlers.ErrorResponse
// @Router      /categories/{id} [delete]
func (h *Handlers) DeleteCategory(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.Categories.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "categories.deleteFailed")
		return
	}
	noContent(c)
}
