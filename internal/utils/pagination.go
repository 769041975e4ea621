package utils

// Page 分页结果，供模板渲染分页导航
type Page struct {
	Number   int   // 当前页，从 1 开始
	Size     int   // 每页条数
	Total    int64 // 总条数
	NumPages int
}

// Paginate 根据 ?page= 的原始值计算页码
// 非数字或小于 1 取第 1 页，超过最后一页取最后一页
func Paginate(raw string, total int64, size int) Page {
	if size < 1 {
		size = 1
	}
	numPages := int((total + int64(size) - 1) / int64(size))
	if numPages == 0 {
		numPages = 1
	}

	number := StringToInt(raw)
	if number < 1 {
		number = 1
	}
	if number > numPages {
		number = numPages
	}
	return Page{Number: number, Size: size, Total: total, NumPages: numPages}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

func (p Page) HasPrevious() bool { return p.Number > 1 }
func (p Page) HasNext() bool     { return p.Number < p.NumPages }
func (p Page) Previous() int     { return p.Number - 1 }
func (p Page) Next() int         { return p.Number + 1 }
func (p Page) HasOtherPages() bool {
	return p.NumPages > 1
}

// Range 所有页码，模板里用来输出页码链接
func (p Page) Range() []int {
	pages := make([]int, p.NumPages)
	for i := range pages {
		pages[i] = i + 1
	}
	return pages
}
