package errors

import "errors"

// ErrUpstreamUnavailable 外部课程目录不可用或返回非成功状态
var ErrUpstreamUnavailable = errors.New("外部课程目录暂不可用，请稍后重试")

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
