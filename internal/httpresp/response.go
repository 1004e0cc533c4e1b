package httpresp

import "github.com/gin-gonic/gin"

type Envelope struct {
	Success bool `json:"success"`
	Payload any  `json:"payload"`
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

func OK(c *gin.Context, data any) {
	c.JSON(200, Envelope{Success: true, Payload: data})
}

func Created(c *gin.Context, data any) {
	c.JSON(201, Envelope{Success: true, Payload: data})
}

func List[T any](c *gin.Context, data []T) {
	OK(c, ListResponse[T]{
		Data:  data,
		Total: len(data),
	})
}
