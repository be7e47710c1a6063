package handler

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	acadYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
	registerOnce    sync.Once
)

// RegisterValidators 向 Gin 的校验引擎注册自定义规则
//
//	acadyear: 形如 "2024-2025"，且后一年恰为前一年加一
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("acadyear", validateAcadYear)
	})
}

func validateAcadYear(fl validator.FieldLevel) bool {
	return IsAcadYear(fl.Field().String())
}

// IsAcadYear 判断字符串是否为合法学年
func IsAcadYear(s string) bool {
	m := acadYearPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	return end == start+1
}
