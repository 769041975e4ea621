// Package web 内嵌模板与静态资源，单个二进制即可运行
package web

import "embed"

//go:embed templates static
var FS embed.FS
