package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами
// (координаты вокселя или чанка)
type Vec3 struct {
	X int
	Y int
	Z int
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Scale умножает все компоненты на скаляр
func (v Vec3) Scale(k int) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// DistanceTo возвращает квадрат расстояния до другого вектора
func (v Vec3) DistanceTo(other Vec3) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return float64(dx*dx + dy*dy + dz*dz)
}

// ChebyshevDistance возвращает максимум модулей разностей по осям.
// Именно эта метрика используется для радиуса загрузки чанков (куб, а не шар).
func (v Vec3) ChebyshevDistance(other Vec3) int {
	d := abs(v.X - other.X)
	if dy := abs(v.Y - other.Y); dy > d {
		d = dy
	}
	if dz := abs(v.Z - other.Z); dz > d {
		d = dz
	}
	return d
}

// Array возвращает компоненты в виде массива, удобно для обхода по осям
func (v Vec3) Array() [3]int {
	return [3]int{v.X, v.Y, v.Z}
}

// FromArray создает Vec3 из массива компонент
func FromArray(a [3]int) Vec3 {
	return Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// FloorDiv делит с округлением вниз (к минус бесконечности)
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod возвращает остаток, который всегда неотрицателен при b > 0
func FloorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
