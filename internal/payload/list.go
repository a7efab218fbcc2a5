package payload

import "github.com/sitecraft/sitecraft/pkg/store"

// 排序顺序常量
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

const DefaultPageSize = 20

// 分页请求统一接口
type (
	// ListReqQuery 分页请求参数（从 query 中获取），两个参数都可以省略
	// 如果需要包含其他参数，不能通过组合的方式，需要直接定义在结构体中（否则无法通过 Gin 校验）
	ListReqQuery struct {
		PageIndex *int `form:"page_index" binding:"omitempty,min=0"`
		PageSize  *int `form:"page_size" binding:"omitempty,min=1,max=100"`
	}
	ListResp[T any] struct {
		Rows  []T   `json:"rows"`
		Count int64 `json:"count"`
	}
)

// ToPage converts the query into a store page, the first page by default.
func ToPage(index, size *int) store.Page {
	page := store.Page{Size: DefaultPageSize}
	if index != nil {
		page.Index = *index
	}
	if size != nil {
		page.Size = *size
	}
	return page
}

func (q ListReqQuery) Page() store.Page {
	return ToPage(q.PageIndex, q.PageSize)
}
