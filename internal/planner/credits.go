package planner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrUnknownModule = errors.New("课程不在目录中")
	ErrNoOfferings   = errors.New("全年课程在该学年无开课学期")
)

// ModuleInfo 规划所需的课程基本信息
type ModuleInfo struct {
	Code     string
	Title    string
	Credits  *big.Rat
	YearLong bool
}

// Catalog 课程目录只读查询（由数据库或内存实现）
type Catalog interface {
	// ModuleInfo 查询课程学分与是否全年课程；不存在时返回 ErrUnknownModule
	ModuleInfo(ctx context.Context, code string) (ModuleInfo, error)
	// TermsOffered 查询课程在某学年开设的学期编号
	TermsOffered(ctx context.Context, code, acadYear string) ([]int, error)
}

// TermCredit 单门课程在某学期计入的学分
// 全年课程按该学年开课学期数平均分摊，结果为精确有理数
func TermCredit(ctx context.Context, catalog Catalog, code, acadYear string) (*big.Rat, error) {
	info, err := catalog.ModuleInfo(ctx, code)
	if err != nil {
		return nil, err
	}
	credit := new(big.Rat)
	if info.Credits != nil {
		credit.Set(info.Credits)
	}
	if !info.YearLong {
		return credit, nil
	}

	terms, err := catalog.TermsOffered(ctx, code, acadYear)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %s AY%s", ErrNoOfferings, code, acadYear)
	}
	return credit.Quo(credit, new(big.Rat).SetInt64(int64(len(terms)))), nil
}

// TotalCredits 计算一个学期所选课程的总学分
func TotalCredits(ctx context.Context, catalog Catalog, codes []string, acadYear string) (*big.Rat, error) {
	total := new(big.Rat)
	for _, code := range codes {
		credit, err := TermCredit(ctx, catalog, code, acadYear)
		if err != nil {
			return nil, err
		}
		total.Add(total, credit)
	}
	return total, nil
}

// FormatCredits 学分展示（保留两位小数）
func FormatCredits(r *big.Rat) string {
	if r == nil {
		return "0.00"
	}
	return r.FloatString(2)
}
